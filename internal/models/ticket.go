package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type TicketStatus string

const (
	TicketStatusWaiting    TicketStatus = "Waiting"
	TicketStatusUpNext     TicketStatus = "Up Next"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusDone       TicketStatus = "Done"
	TicketStatusCancelled  TicketStatus = "Cancelled"
)

// ParseTicketStatus accepts only the five statuses the queue server emits.
func ParseTicketStatus(s string) (TicketStatus, error) {
	switch st := TicketStatus(s); st {
	case TicketStatusWaiting, TicketStatusUpNext, TicketStatusInProgress,
		TicketStatusDone, TicketStatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown ticket status %q", s)
	}
}

func (s *TicketStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	st, err := ParseTicketStatus(raw)
	if err != nil {
		return err
	}

	*s = st
	return nil
}

func (s TicketStatus) IsActive() bool {
	return s == TicketStatusWaiting || s == TicketStatusUpNext || s == TicketStatusInProgress
}

func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusDone || s == TicketStatusCancelled
}

type Ticket struct {
	ID                     int64        `json:"id"`
	BarberID               int64        `json:"barber_id"`
	CustomerID             *string      `json:"customer_id,omitempty"`
	CustomerName           string       `json:"customer_name,omitempty"`
	ServiceID              int64        `json:"service_id"`
	ServiceDurationMinutes int          `json:"service_duration_minutes"`
	Status                 TicketStatus `json:"status"`
	Confirmed              bool         `json:"is_confirmed"`
	DistanceMeters         *float64     `json:"current_distance_meters,omitempty"`
	HeadCount              int          `json:"head_count"`
	IsVIP                  bool         `json:"is_vip"`
	StartedAt              *time.Time   `json:"started_at,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

func (t *Ticket) IsActive() bool {
	return t.Status.IsActive()
}

func (t *Ticket) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Heads returns the head count, treating a missing value as one person.
func (t *Ticket) Heads() int {
	if t.HeadCount < 1 {
		return 1
	}
	return t.HeadCount
}

// ServiceStart is when the chair was taken; the server only stamps
// updated_at on the In Progress transition for older rows.
func (t *Ticket) ServiceStart() time.Time {
	if t.StartedAt != nil {
		return *t.StartedAt
	}
	return t.UpdatedAt
}

// NeedsConfirmation reports whether the customer still has to acknowledge their turn.
func (t *Ticket) NeedsConfirmation() bool {
	return t.Status == TicketStatusUpNext && !t.Confirmed
}

// MissedEvent is the last terminal event the server recorded for a customer.
type MissedEvent struct {
	Event *TicketStatus `json:"event"`
}
