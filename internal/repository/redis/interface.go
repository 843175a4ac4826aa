package repository

import (
	"context"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
)

// SessionRepository persists the single local session record. Put always
// replaces the whole record; there are no per-field writes.
type SessionRepository interface {
	Get(ctx context.Context) (*models.Session, error)
	Put(ctx context.Context, ss *models.Session) error
	Delete(ctx context.Context) error
}
