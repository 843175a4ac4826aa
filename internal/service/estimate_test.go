package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
)

func TestEstimateWait(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	started := now.Add(-25 * time.Minute)

	tests := []struct {
		name  string
		ahead []models.Ticket
		want  int
	}{
		{
			name: "empty queue",
			want: 0,
		},
		{
			name: "waiting tickets multiply by head count",
			ahead: []models.Ticket{
				{Status: models.TicketStatusWaiting, ServiceDurationMinutes: 20, HeadCount: 2},
				{Status: models.TicketStatusUpNext, ServiceDurationMinutes: 15, HeadCount: 0},
			},
			want: 55,
		},
		{
			name: "in progress contributes remaining time",
			ahead: []models.Ticket{
				{Status: models.TicketStatusInProgress, ServiceDurationMinutes: 30, HeadCount: 1, StartedAt: &started},
			},
			want: 5,
		},
		{
			name: "overrun in progress is floored at five",
			ahead: []models.Ticket{
				{Status: models.TicketStatusInProgress, ServiceDurationMinutes: 10, HeadCount: 1, UpdatedAt: now.Add(-time.Hour)},
				{Status: models.TicketStatusWaiting, ServiceDurationMinutes: 10, HeadCount: 1},
			},
			want: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateWait(tt.ahead, now))
		})
	}
}

func TestStickyTargetOnlyMovesEarlier(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	prev := now.Add(30 * time.Minute)

	assert.Equal(t, now.Add(20*time.Minute), StickyTarget(nil, now.Add(20*time.Minute), now))
	assert.Equal(t, prev, StickyTarget(&prev, now.Add(45*time.Minute), now))
	assert.Equal(t, now.Add(25*time.Minute), StickyTarget(&prev, now.Add(25*time.Minute), now))

	elapsed := now.Add(-time.Minute)
	assert.Equal(t, now.Add(45*time.Minute), StickyTarget(&elapsed, now.Add(45*time.Minute), now))
}
