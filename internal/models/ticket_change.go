package models

import "time"

type ChangeOp string

const (
	ChangeOpInsert ChangeOp = "INSERT"
	ChangeOpUpdate ChangeOp = "UPDATE"
	ChangeOpDelete ChangeOp = "DELETE"
)

// TicketChange is one row-level notification from the change feed. It is a
// prompt to refetch, never state to apply.
type TicketChange struct {
	Op         ChangeOp  `json:"op"`
	TicketID   int64     `json:"ticket_id"`
	BarberID   int64     `json:"barber_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
