package service

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	pkgErrors "github.com/andrei1031/dash-q-v2-front-sub000/pkg/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/queueapi"
)

func TestJoinSavesSession(t *testing.T) {
	h := newHarness(t)

	tk, err := h.queue.Join(h.ctx, queueapi.JoinRequest{BarberID: 2, ServiceID: 5, HeadCount: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(100), tk.ID)

	ss := h.session()
	require.NotNil(t, ss)
	assert.Equal(t, int64(100), ss.TicketID)
	assert.Equal(t, int64(2), ss.BarberID)
	assert.Len(t, h.events.ofType(models.EventJoined), 1)
}

func TestJoinConflictAdoptsExistingTicket(t *testing.T) {
	h := newHarness(t)

	existing := ticket(77, 3, models.TicketStatusWaiting)
	h.api.joinFn = func(req queueapi.JoinRequest) (*models.Ticket, error) {
		return nil, &queueapi.ConflictError{Message: "already in queue", Existing: &existing}
	}

	tk, err := h.queue.Join(h.ctx, queueapi.JoinRequest{BarberID: 2, ServiceID: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(77), tk.ID)

	ss := h.session()
	require.NotNil(t, ss)
	assert.Equal(t, int64(77), ss.TicketID)
	assert.Equal(t, int64(3), ss.BarberID, "the server's ticket wins over the requested barber")
}

func TestJoinConflictWithoutTicketFails(t *testing.T) {
	h := newHarness(t)
	h.api.joinFn = func(req queueapi.JoinRequest) (*models.Ticket, error) {
		return nil, &queueapi.ConflictError{Message: "already in queue"}
	}

	_, err := h.queue.Join(h.ctx, queueapi.JoinRequest{BarberID: 2})
	assert.ErrorIs(t, err, errors.ErrConflict)
	assert.Nil(t, h.session())
}

func TestJoinRefusedWhileHoldingTicket(t *testing.T) {
	h := newHarness(t)
	h.join(10, 1)

	_, err := h.queue.Join(h.ctx, queueapi.JoinRequest{BarberID: 2})
	assert.ErrorIs(t, err, errors.ErrConflict)
	assert.Zero(t, h.api.count("JoinQueue"))
}

func TestLeaveClearsSession(t *testing.T) {
	h := newHarness(t)
	h.join(10, 1)

	require.NoError(t, h.queue.Leave(h.ctx))
	assert.Nil(t, h.session())
	assert.Len(t, h.events.ofType(models.EventLeft), 1)

	assert.ErrorIs(t, h.queue.Leave(h.ctx), errors.ErrNoActiveTicket)
}

func TestLeaveFailureKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.join(10, 1)
	h.api.leaveErr = fmt.Errorf("%w: timeout", errors.ErrNetworkTransient)

	assert.Error(t, h.queue.Leave(h.ctx))
	assert.NotNil(t, h.session())
	assert.Empty(t, h.events.ofType(models.EventLeft))
}

func TestLeaveAlreadyGoneTicket(t *testing.T) {
	h := newHarness(t)
	h.join(10, 1)
	h.api.leaveErr = pkgErrors.NewHTTPError(http.MethodDelete, "/api/queue/10", http.StatusNotFound, "")

	require.NoError(t, h.queue.Leave(h.ctx))
	assert.Nil(t, h.session())
}
