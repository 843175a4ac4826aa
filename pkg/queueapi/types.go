package queueapi

import (
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
)

type JoinRequest struct {
	BarberID     int64  `json:"barber_id"`
	ServiceID    int64  `json:"service_id"`
	CustomerID   string `json:"customer_id,omitempty"`
	CustomerName string `json:"customer_name"`
	HeadCount    int    `json:"head_count"`
	IsVIP        bool   `json:"is_vip"`
}

type joinResponse struct {
	Ticket *models.Ticket `json:"ticket"`
}

type conflictResponse struct {
	Error          string         `json:"error"`
	ExistingTicket *models.Ticket `json:"existing_ticket"`
}

type locationRequest struct {
	DistanceMeters float64 `json:"distance_meters"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ConflictError is returned by JoinQueue when the customer already holds an
// active ticket. Existing is the server's copy of that ticket, when sent.
type ConflictError struct {
	Message  string
	Existing *models.Ticket
}

func (e *ConflictError) Error() string {
	if e.Message == "" {
		return errors.ErrConflict.Error()
	}
	return e.Message
}

func (e *ConflictError) Is(target error) bool {
	return target == errors.ErrConflict
}
