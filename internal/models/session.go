package models

import "time"

type StickyAlert string

const (
	StickyAlertNone     StickyAlert = ""
	StickyAlertYourTurn StickyAlert = "yourTurn"
	StickyAlertTooFar   StickyAlert = "tooFar"
)

// Session is the locally persisted record of which ticket is ours.
type Session struct {
	TicketID       int64       `json:"ticket_id"`
	BarberID       int64       `json:"barber_id"`
	TargetFinishAt *time.Time  `json:"target_finish_at,omitempty"`
	StickyAlert    StickyAlert `json:"sticky_alert,omitempty"`
	UnreadChat     bool        `json:"unread_chat"`
}

func (s *Session) IsZero() bool {
	return s == nil || s.TicketID == 0
}

// Clone returns a deep copy so callers never share the target pointer.
func (s Session) Clone() Session {
	if s.TargetFinishAt != nil {
		t := *s.TargetFinishAt
		s.TargetFinishAt = &t
	}
	return s
}
