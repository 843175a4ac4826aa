package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/redis"
)

// The record has no expiry; it lives until the ticket ends or is left.
const (
	fieldTicketID    = "ticket_id"
	fieldBarberID    = "barber_id"
	fieldTargetAt    = "target_finish_at"
	fieldStickyAlert = "sticky_alert"
	fieldUnreadChat  = "unread_chat"
)

type redisSessionRepository struct {
	cli      *redis.Client
	clientID string
	l        logger.Logger
}

func NewRedisSessionRepository(cli *redis.Client, clientID string, l logger.Logger) SessionRepository {
	return &redisSessionRepository{
		cli:      cli,
		clientID: clientID,
		l:        l,
	}
}

func (r *redisSessionRepository) Get(ctx context.Context) (*models.Session, error) {
	fields, err := r.cli.HGetAll(ctx, r.sessionKey())
	if err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Get: %v", err)
		return nil, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}

	if len(fields) == 0 {
		return nil, errors.ErrSessionNotFound
	}

	ss, err := decodeSession(fields)
	if err != nil {
		r.l.Warnf(ctx, "redisSessionRepository.Get: discarding unreadable session: %v", err)
		return nil, errors.ErrSessionNotFound
	}

	return ss, nil
}

func (r *redisSessionRepository) Put(ctx context.Context, ss *models.Session) error {
	key := r.sessionKey()

	// MULTI/EXEC so readers see either the old record or the new one.
	pipe := r.cli.GetClient().TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, encodeSession(ss))

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Put: %v", err)
		return fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}

	r.l.Debugf(ctx, "Session saved - ticket_id: %d, barber_id: %d, sticky: %q",
		ss.TicketID, ss.BarberID, ss.StickyAlert)

	return nil
}

func (r *redisSessionRepository) Delete(ctx context.Context) error {
	if err := r.cli.GetClient().Del(ctx, r.sessionKey()).Err(); err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Delete: %v", err)
		return fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}

	r.l.Debugf(ctx, "Session cleared - client_id: %s", r.clientID)

	return nil
}

func (r *redisSessionRepository) sessionKey() string {
	return fmt.Sprintf("dashq:session:%s", r.clientID)
}

func encodeSession(ss *models.Session) map[string]any {
	target := ""
	if ss.TargetFinishAt != nil {
		target = ss.TargetFinishAt.UTC().Format(time.RFC3339Nano)
	}

	unread := "0"
	if ss.UnreadChat {
		unread = "1"
	}

	return map[string]any{
		fieldTicketID:    strconv.FormatInt(ss.TicketID, 10),
		fieldBarberID:    strconv.FormatInt(ss.BarberID, 10),
		fieldTargetAt:    target,
		fieldStickyAlert: string(ss.StickyAlert),
		fieldUnreadChat:  unread,
	}
}

func decodeSession(fields map[string]string) (*models.Session, error) {
	ticketID, err := strconv.ParseInt(fields[fieldTicketID], 10, 64)
	if err != nil || ticketID == 0 {
		return nil, fmt.Errorf("invalid %s %q", fieldTicketID, fields[fieldTicketID])
	}

	barberID, err := strconv.ParseInt(fields[fieldBarberID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", fieldBarberID, fields[fieldBarberID])
	}

	ss := &models.Session{
		TicketID:    ticketID,
		BarberID:    barberID,
		StickyAlert: models.StickyAlert(fields[fieldStickyAlert]),
		UnreadChat:  fields[fieldUnreadChat] == "1",
	}

	if raw := fields[fieldTargetAt]; raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", fieldTargetAt, raw)
		}
		ss.TargetFinishAt = &at
	}

	return ss, nil
}
