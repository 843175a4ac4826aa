package service

import (
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
)

// minInProgressMinutes is the least a running service is assumed to still need.
const minInProgressMinutes = 5

// EstimateWait returns the minutes of service queued in ahead. A ticket in the
// chair contributes its remaining time, never less than five minutes.
func EstimateWait(ahead []models.Ticket, now time.Time) int {
	total := 0

	for i := range ahead {
		t := &ahead[i]
		d := t.ServiceDurationMinutes * t.Heads()

		if t.Status == models.TicketStatusInProgress {
			elapsed := int(now.Sub(t.ServiceStart()).Minutes())
			d = max(minInProgressMinutes, d-elapsed)
		}

		total += d
	}

	return total
}

// StickyTarget keeps prev unless it has already passed or candidate is
// strictly sooner, so the displayed finish time never drifts later.
func StickyTarget(prev *time.Time, candidate, now time.Time) time.Time {
	if prev == nil || !prev.After(now) || candidate.Before(*prev) {
		return candidate
	}
	return *prev
}
