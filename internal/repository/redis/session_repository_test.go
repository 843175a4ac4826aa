package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/redis"
)

func newTestRepo(t *testing.T) (SessionRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cli := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })

	return NewRedisSessionRepository(redis.Wrap(cli), "device-1", logger.InitializeTestZapLogger()), mr
}

func TestSessionRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	target := time.Date(2024, 6, 1, 14, 30, 0, 0, time.UTC)
	in := &models.Session{
		TicketID:       42,
		BarberID:       3,
		TargetFinishAt: &target,
		StickyAlert:    models.StickyAlertYourTurn,
		UnreadChat:     true,
	}

	require.NoError(t, repo.Put(ctx, in))

	out, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, in.TicketID, out.TicketID)
	assert.Equal(t, in.BarberID, out.BarberID)
	assert.Equal(t, in.StickyAlert, out.StickyAlert)
	assert.True(t, out.UnreadChat)
	require.NotNil(t, out.TargetFinishAt)
	assert.True(t, target.Equal(*out.TargetFinishAt))
}

func TestSessionDeleteRemovesAllFields(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, &models.Session{TicketID: 1, BarberID: 2, StickyAlert: models.StickyAlertTooFar}))
	require.NoError(t, repo.Delete(ctx))

	assert.False(t, mr.Exists("dashq:session:device-1"))

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestPutReplacesWholeRecord(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	target := time.Now().Add(time.Hour)
	require.NoError(t, repo.Put(ctx, &models.Session{TicketID: 1, BarberID: 2, TargetFinishAt: &target, StickyAlert: models.StickyAlertYourTurn}))
	require.NoError(t, repo.Put(ctx, &models.Session{TicketID: 1, BarberID: 5}))

	out, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.BarberID)
	assert.Nil(t, out.TargetFinishAt)
	assert.Equal(t, models.StickyAlertNone, out.StickyAlert)
}

func TestIdleSessionDoesNotExpire(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, &models.Session{TicketID: 1, BarberID: 2}))
	mr.FastForward(72 * time.Hour)

	assert.Zero(t, mr.TTL("dashq:session:device-1"))
	out, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.TicketID)
}

func TestPartialRecordIsNotObservable(t *testing.T) {
	repo, mr := newTestRepo(t)

	mr.HSet("dashq:session:device-1", "barber_id", "9")

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestUnavailableStorage(t *testing.T) {
	repo, mr := newTestRepo(t)
	mr.Close()

	err := repo.Put(context.Background(), &models.Session{TicketID: 1, BarberID: 1})
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
}
