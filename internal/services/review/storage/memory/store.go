// Package memory provides an in-memory SessionStore for tests and for the
// scenario runner, which exercises full sessions without touching disk.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/crosscheck/internal/services/review/domain"
	"github.com/louisbranch/crosscheck/internal/services/review/storage"
)

type record struct {
	version   int64
	status    string
	target    string
	round     int
	updatedAt time.Time
	payload   []byte
}

// Store keeps session documents in memory. Sessions pass through the same
// encode/decode codec as the SQLite store, so callers get deep copies and the
// schema-on-read gate behaves identically.
type Store struct {
	mu      sync.RWMutex
	records map[string]record
}

// New creates an empty in-memory session store.
func New() *Store {
	return &Store{records: map[string]record{}}
}

// PutSession stores an encoded copy of the session, bumping its version.
func (s *Store) PutSession(ctx context.Context, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil || !domain.ValidSessionID(session.ID) {
		return storage.ErrNotFound
	}

	payload, err := storage.EncodeSession(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.records[session.ID]
	s.records[session.ID] = record{
		version:   prev.version + 1,
		status:    string(session.Status),
		target:    session.Target,
		round:     session.CurrentRound,
		updatedAt: session.UpdatedAt.UTC(),
		payload:   payload,
	}
	return nil
}

// GetSession decodes a stored session. Missing ids return ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !domain.ValidSessionID(id) {
		return nil, storage.ErrNotFound
	}

	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.DecodeSession(id, rec.payload)
}

// ListSessions returns summaries, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]storage.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.SessionSummary, 0, len(s.records))
	for id, rec := range s.records {
		out = append(out, storage.SessionSummary{
			ID:           id,
			Status:       rec.status,
			Target:       rec.target,
			CurrentRound: rec.round,
			Version:      rec.version,
			UpdatedAt:    rec.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteSession removes one session. Missing ids return ErrNotFound.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.records, id)
	return nil
}
