package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
)

// TicketChangeMessage is the value of a record on the ticket change topic.
// The record key is the barber id.
type TicketChangeMessage struct {
	Op         string    `json:"op"`
	TicketID   int64     `json:"ticket_id"`
	BarberID   int64     `json:"barber_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (m TicketChangeMessage) ToModel() models.TicketChange {
	return models.TicketChange{
		Op:         models.ChangeOp(m.Op),
		TicketID:   m.TicketID,
		BarberID:   m.BarberID,
		OccurredAt: m.OccurredAt,
	}
}

func NewTicketChangeMessage(ch models.TicketChange) TicketChangeMessage {
	return TicketChangeMessage{
		Op:         string(ch.Op),
		TicketID:   ch.TicketID,
		BarberID:   ch.BarberID,
		OccurredAt: ch.OccurredAt,
	}
}

func BarberKey(barberID int64) string {
	return strconv.FormatInt(barberID, 10)
}

// DecodeTicketChange reads a record. A value without a barber id takes it
// from the key.
func DecodeTicketChange(msg *sarama.ConsumerMessage) (models.TicketChange, error) {
	var m TicketChangeMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return models.TicketChange{}, fmt.Errorf("decode ticket change at offset %d: %w", msg.Offset, err)
	}

	if m.BarberID == 0 && len(msg.Key) > 0 {
		id, err := strconv.ParseInt(string(msg.Key), 10, 64)
		if err != nil {
			return models.TicketChange{}, fmt.Errorf("decode ticket change key %q: %w", msg.Key, err)
		}
		m.BarberID = id
	}

	return m.ToModel(), nil
}
