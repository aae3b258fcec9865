package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	domainerrors "github.com/kindlehubapp/kindlehub/internal/errors"
	"github.com/kindlehubapp/kindlehub/internal/id"
)

// Session is one client's review workspace. It owns a BatchService that is
// only reached through SessionRegistry.Do.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	mu       sync.Mutex
	batches  *BatchService
	lastUsed time.Time
}

// BatchServiceFactory builds the BatchService of a new session.
type BatchServiceFactory func() *BatchService

// SessionRegistry maps session IDs to their batch services. Calls on one
// session are serialized; different sessions proceed in parallel.
type SessionRegistry struct {
	factory BatchServiceFactory
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(factory BatchServiceFactory, logger *slog.Logger) *SessionRegistry {
	return &SessionRegistry{
		factory:  factory,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session with a fresh BatchService and loads the stored
// batch history into it. A history load failure is logged, not returned.
func (r *SessionRegistry) Create(ctx context.Context) (*Session, error) {
	sessionID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate session id")
	}

	batches := r.factory()
	if err := batches.LoadHistory(ctx); err != nil {
		r.logger.Warn("failed to load batch history for new session", "session_id", sessionID, "error", err)
	}

	now := r.now()
	sess := &Session{
		ID:        sessionID,
		CreatedAt: now,
		batches:   batches,
		lastUsed:  now,
	}

	r.mu.Lock()
	r.sessions[sessionID] = sess
	r.mu.Unlock()

	r.logger.Debug("session created", "session_id", sessionID)
	return sess, nil
}

// Do runs fn with the session's BatchService while holding the session lock.
func (r *SessionRegistry) Do(sessionID string, fn func(*BatchService) error) error {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if ok {
		sess.lastUsed = r.now()
	}
	r.mu.Unlock()

	if !ok {
		return domainerrors.NotFoundf("session %s not found", sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess.batches)
}

// CommitStatus is a session's commit progress.
type CommitStatus struct {
	Processing bool
	Progress   int
}

// CommitStatus reads the session's commit progress without waiting for the
// session lock, so it can be polled while a commit holds it.
func (r *SessionRegistry) CommitStatus(sessionID string) (CommitStatus, error) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if ok {
		sess.lastUsed = r.now()
	}
	r.mu.Unlock()

	if !ok {
		return CommitStatus{}, domainerrors.NotFoundf("session %s not found", sessionID)
	}
	return CommitStatus{
		Processing: sess.batches.IsProcessing(),
		Progress:   sess.batches.Progress(),
	}, nil
}

// Close drops a session and its active batch. The batch is not recorded.
func (r *SessionRegistry) Close(sessionID string) error {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if !ok {
		return domainerrors.NotFoundf("session %s not found", sessionID)
	}

	sess.mu.Lock()
	sess.batches.ClearBatch()
	sess.mu.Unlock()

	r.logger.Debug("session closed", "session_id", sessionID)
	return nil
}

// Len returns the number of open sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Expire closes sessions idle for longer than maxIdle and returns how many.
// Sessions with a request in flight are skipped.
func (r *SessionRegistry) Expire(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	expired := 0
	for sessionID, sess := range r.sessions {
		if !sess.lastUsed.Before(cutoff) {
			continue
		}
		if !sess.mu.TryLock() {
			continue
		}
		sess.batches.ClearBatch()
		sess.mu.Unlock()
		delete(r.sessions, sessionID)
		expired++
	}

	if expired > 0 {
		r.logger.Info("expired idle sessions", "count", expired)
	}
	return expired
}

// RunJanitor calls Expire every interval until ctx is done.
func (r *SessionRegistry) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Expire(maxIdle)
		}
	}
}
