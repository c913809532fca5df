package app

import (
	"context"

	"github.com/louisbranch/crosscheck/internal/services/review/domain"
)

// CheckpointResult describes a snapshot that was just taken.
type CheckpointResult struct {
	SessionID    string
	Round        int
	ContextFiles int
	Issues       int
}

// Checkpoint takes an on-demand snapshot at the current round boundary.
func (s *Service) Checkpoint(ctx context.Context, sessionID string) (*CheckpointResult, error) {
	ctx, span := s.startSpan(ctx, "review.create_checkpoint", sessionID)
	defer span.End()

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cp := session.TakeCheckpoint(s.now())
	if err := s.persistSession(ctx, session); err != nil {
		return nil, err
	}

	return &CheckpointResult{
		SessionID:    session.ID,
		Round:        cp.Round,
		ContextFiles: len(cp.ContextPaths),
		Issues:       len(cp.Issues),
	}, nil
}

// RollbackResult describes the session state after a rollback.
type RollbackResult struct {
	SessionID    string
	CurrentRound int
	Status       domain.Status
	Issues       int
	ContextFiles int
}

// Rollback restores the session to the checkpoint at toRound. Discovered
// context files survive the rollback; context only grows.
func (s *Service) Rollback(ctx context.Context, sessionID string, toRound int) (*RollbackResult, error) {
	ctx, span := s.startSpan(ctx, "review.rollback_session", sessionID)
	defer span.End()

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := session.RollbackTo(toRound); err != nil {
		return nil, err
	}
	if err := s.persistSession(ctx, session); err != nil {
		return nil, err
	}

	return &RollbackResult{
		SessionID:    session.ID,
		CurrentRound: session.CurrentRound,
		Status:       session.Status,
		Issues:       len(session.Issues),
		ContextFiles: session.Context.Len(),
	}, nil
}
