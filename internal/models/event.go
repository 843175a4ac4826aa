package models

import "time"

type EventType string

const (
	EventStatusChanged   EventType = "status_changed"
	EventYourTurn        EventType = "your_turn"
	EventTurnReverted    EventType = "turn_reverted"
	EventTransferred     EventType = "transferred"
	EventEstimate        EventType = "estimate"
	EventCompleted       EventType = "completed"
	EventCancelled       EventType = "cancelled"
	EventRemoved         EventType = "removed"
	EventLeft            EventType = "left"
	EventJoined          EventType = "joined"
	EventPendingRejected EventType = "pending_rejected"
	EventArrived         EventType = "arrived"
	EventDriftWarning    EventType = "drift_warning"
	EventDriftResolved   EventType = "drift_resolved"
	EventGeoUpdate       EventType = "geo_update"
	EventOpportunity     EventType = "opportunity"
	EventSwitched        EventType = "switched"
	EventSwitchFailed    EventType = "switch_failed"
	EventStorageDegraded EventType = "storage_degraded"
	EventChatUnread      EventType = "chat_unread"
)

// Event is what the reconciliation engine and geofence tracker publish.
// Only the fields relevant to Type are set.
type Event struct {
	ID           string       `json:"id"`
	Type         EventType    `json:"type"`
	TicketID     int64        `json:"ticket_id,omitempty"`
	BarberID     int64        `json:"barber_id,omitempty"`
	FromBarberID int64        `json:"from_barber_id,omitempty"`
	Status       TicketStatus `json:"status,omitempty"`
	Message      string       `json:"message,omitempty"`
	FinishAt     *time.Time   `json:"finish_at,omitempty"`
	Distance     float64      `json:"distance_meters,omitempty"`
	ETAMinutes   int          `json:"eta_minutes,omitempty"`
	Barber       *Barber      `json:"barber,omitempty"`
	At           time.Time    `json:"at"`
}

// IsTerminal reports whether the event ends the session.
func (e Event) IsTerminal() bool {
	switch e.Type {
	case EventCompleted, EventCancelled, EventRemoved, EventLeft:
		return true
	}
	return false
}
