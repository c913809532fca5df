// Package app implements the session orchestrator: every operation validates
// the session identifier, loads the document, mutates it through the domain
// layer, and persists the whole document back.
package app

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	apperrors "github.com/louisbranch/crosscheck/internal/platform/errors"
	"github.com/louisbranch/crosscheck/internal/platform/id"
	"github.com/louisbranch/crosscheck/internal/services/review/domain"
	"github.com/louisbranch/crosscheck/internal/services/review/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RoleComplete is the next-role sentinel returned once a session converged or
// exhausted its round budget.
const RoleComplete = "complete"

// Service orchestrates review sessions over a session store. Operations are
// synchronous; cross-process writes are last-write-wins at session
// granularity under a single-writer assumption.
type Service struct {
	store     storage.SessionStore
	extractor domain.Extractor
	policy    domain.Policy
	tracer    trace.Tracer
	logger    *log.Logger

	now       func() time.Time
	newSuffix func() (string, error)
	readFile  func(path string) ([]byte, error)

	// cache holds sessions loaded by this process. It is an explicit field,
	// populated on load and evicted when a session ends.
	mu    sync.Mutex
	cache map[string]*domain.Session
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSuffix overrides the session id suffix generator.
func WithSuffix(newSuffix func() (string, error)) Option {
	return func(s *Service) { s.newSuffix = newSuffix }
}

// WithExtractor overrides the round-output reference extractor.
func WithExtractor(extractor domain.Extractor) Option {
	return func(s *Service) { s.extractor = extractor }
}

// WithPolicy overrides the convergence policy.
func WithPolicy(policy domain.Policy) Option {
	return func(s *Service) { s.policy = policy }
}

// WithLogger overrides the service logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithFileReader overrides how context files are read from disk.
func WithFileReader(readFile func(path string) ([]byte, error)) Option {
	return func(s *Service) { s.readFile = readFile }
}

// New creates the orchestrator over the given store.
func New(store storage.SessionStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		extractor: domain.RegexExtractor{},
		policy:    domain.DefaultPolicy(),
		tracer:    otel.Tracer("crosscheck/review"),
		logger:    log.Default(),
		now:       time.Now,
		newSuffix: id.ShortID,
		readFile:  os.ReadFile,
		cache:     map[string]*domain.Session{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// startSpan opens the per-operation span with the session id attached.
func (s *Service) startSpan(ctx context.Context, name, sessionID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("review.session_id", sessionID)))
}

// loadSession resolves a session through the cache, falling back to the
// store. Invalid identifiers and malformed documents are both reported as
// not-found; the distinction is logged for operators.
func (s *Service) loadSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if !domain.ValidSessionID(sessionID) {
		s.logger.Printf("review: rejected invalid session id %q", sessionID)
		return nil, apperrors.WithMetadata(apperrors.CodeSessionNotFound,
			"session not found", map[string]string{"session_id": sessionID})
	}

	s.mu.Lock()
	cached, ok := s.cache[sessionID]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrMalformed) {
		s.logger.Printf("review: session %s failed schema validation: %v", sessionID, err)
		return nil, apperrors.WithMetadata(apperrors.CodeSessionNotFound,
			"session not found", map[string]string{"session_id": sessionID})
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.WithMetadata(apperrors.CodeSessionNotFound,
			"session not found", map[string]string{"session_id": sessionID})
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "load session", err)
	}

	s.mu.Lock()
	s.cache[sessionID] = session
	s.mu.Unlock()
	return session, nil
}

// persistSession stamps the update time and writes the whole document. A
// failed write evicts the session from the cache: the in-memory copy was
// already mutated by the caller, and serving it would diverge from storage.
func (s *Service) persistSession(ctx context.Context, session *domain.Session) error {
	session.UpdatedAt = s.now().UTC()
	if err := s.store.PutSession(ctx, session); err != nil {
		s.evict(session.ID)
		return apperrors.Wrap(apperrors.CodeInternal, "persist session", err)
	}
	s.mu.Lock()
	s.cache[session.ID] = session
	s.mu.Unlock()
	return nil
}

// evict drops a session from the in-process cache.
func (s *Service) evict(sessionID string) {
	s.mu.Lock()
	delete(s.cache, sessionID)
	s.mu.Unlock()
}
