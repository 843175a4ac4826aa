package models

type Barber struct {
	ID          int64  `json:"id"`
	Name        string `json:"full_name"`
	IsActive    bool   `json:"is_active"`
	IsAvailable bool   `json:"is_available"`
	QueueLength int    `json:"queue_length"`
}

// IsIdle reports whether the barber could take a walk-in right now.
func (b Barber) IsIdle() bool {
	return b.IsActive && b.IsAvailable && b.QueueLength == 0
}

// Opportunity is an idle alternative barber offered as a queue switch.
type Opportunity struct {
	Barber       Barber `json:"barber"`
	FromBarberID int64  `json:"from_barber_id"`
}
