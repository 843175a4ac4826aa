package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketStatusDecoding(t *testing.T) {
	var tk Ticket
	require.NoError(t, json.Unmarshal([]byte(`{"id":4,"barber_id":2,"status":"Up Next","is_confirmed":false,"head_count":0}`), &tk))

	assert.Equal(t, TicketStatusUpNext, tk.Status)
	assert.True(t, tk.IsActive())
	assert.True(t, tk.NeedsConfirmation())
	assert.Equal(t, 1, tk.Heads())

	err := json.Unmarshal([]byte(`{"id":4,"status":"Sleeping"}`), &tk)
	assert.Error(t, err)
}

func TestTicketStatusClassification(t *testing.T) {
	tests := []struct {
		status   TicketStatus
		active   bool
		terminal bool
	}{
		{TicketStatusWaiting, true, false},
		{TicketStatusUpNext, true, false},
		{TicketStatusInProgress, true, false},
		{TicketStatusDone, false, true},
		{TicketStatusCancelled, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.active, tt.status.IsActive())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestServiceStartFallsBackToUpdatedAt(t *testing.T) {
	updated := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tk := Ticket{UpdatedAt: updated}
	assert.Equal(t, updated, tk.ServiceStart())

	started := updated.Add(-time.Minute)
	tk.StartedAt = &started
	assert.Equal(t, started, tk.ServiceStart())
}

func TestSessionCloneDoesNotShareTarget(t *testing.T) {
	at := time.Now()
	s := Session{TicketID: 1, TargetFinishAt: &at}
	c := s.Clone()
	*c.TargetFinishAt = at.Add(time.Hour)
	assert.Equal(t, at, *s.TargetFinishAt)
}
