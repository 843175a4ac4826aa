package queueapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewClientWithHTTP(srv.URL, srv.Client())
}

func TestSnapshotKeepsOrderAndDropsInactive(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/queue/3", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id":10,"barber_id":3,"status":"In Progress","head_count":1},
			{"id":11,"barber_id":3,"status":"Done","head_count":1},
			{"id":12,"barber_id":3,"status":"Waiting","head_count":2}
		]`))
	})

	tickets, err := c.Snapshot(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, int64(10), tickets[0].ID)
	assert.Equal(t, int64(12), tickets[1].ID)
}

func TestGetTicketNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"ticket not found"}`))
	})

	_, err := c.GetTicket(context.Background(), 99)
	assert.ErrorIs(t, err, errors.ErrTicketNotFound)
}

func TestServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Snapshot(context.Background(), 1)
	assert.ErrorIs(t, err, errors.ErrNetworkTransient)
	assert.Equal(t, errors.KindNetworkTransient, errors.KindOf(err))
}

func TestConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClientWithHTTP(url, http.DefaultClient)
	_, err := c.Snapshot(context.Background(), 1)
	assert.ErrorIs(t, err, errors.ErrNetworkTransient)
}

func TestJoinConflictCarriesExistingTicket(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req JoinRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(4), req.BarberID)

		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"already in queue","existing_ticket":{"id":77,"barber_id":2,"status":"Waiting","head_count":1}}`))
	})

	_, err := c.JoinQueue(context.Background(), JoinRequest{BarberID: 4, ServiceID: 1, HeadCount: 1})
	require.ErrorIs(t, err, errors.ErrConflict)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.NotNil(t, conflict.Existing)
	assert.Equal(t, int64(77), conflict.Existing.ID)
}

func TestJoinCreated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ticket":{"id":5,"barber_id":4,"status":"Waiting","head_count":1}}`))
	})

	tk, err := c.JoinQueue(context.Background(), JoinRequest{BarberID: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(5), tk.ID)
	assert.Equal(t, models.TicketStatusWaiting, tk.Status)
}

func TestMissedEvent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/missed-event/cust-1" {
			_, _ = w.Write([]byte(`{"event":"Cancelled"}`))
			return
		}
		_, _ = w.Write([]byte(`{"event":null}`))
	})

	ev, err := c.MissedEvent(context.Background(), "cust-1")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, models.TicketStatusCancelled, *ev)

	ev, err = c.MissedEvent(context.Background(), "cust-2")
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestMissedEventEscapesCustomerID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/missed-event/a%2Fb%20c", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"event":"Done"}`))
	})

	ev, err := c.MissedEvent(context.Background(), "a/b c")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, models.TicketStatusDone, *ev)
}

func TestUploadLocationSendsDistance(t *testing.T) {
	var got locationRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/tickets/8/location", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.UploadLocation(context.Background(), 8, 120.5))
	assert.InDelta(t, 120.5, got.DistanceMeters, 1e-9)
}
