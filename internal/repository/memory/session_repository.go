package memory

import (
	"context"
	"sync"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
)

// SessionRepository keeps the session for the lifetime of the process only.
type SessionRepository struct {
	mu sync.RWMutex
	ss *models.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{}
}

func (r *SessionRepository) Get(ctx context.Context) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.ss == nil {
		return nil, errors.ErrSessionNotFound
	}

	ss := r.ss.Clone()
	return &ss, nil
}

func (r *SessionRepository) Put(ctx context.Context, ss *models.Session) error {
	cp := ss.Clone()

	r.mu.Lock()
	r.ss = &cp
	r.mu.Unlock()

	return nil
}

func (r *SessionRepository) Delete(ctx context.Context) error {
	r.mu.Lock()
	r.ss = nil
	r.mu.Unlock()

	return nil
}
