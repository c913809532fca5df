package app

import (
	"context"

	apperrors "github.com/louisbranch/crosscheck/internal/platform/errors"
	"github.com/louisbranch/crosscheck/internal/services/review/graph"
)

// RippleEffect rebuilds the dependency graph from persisted context and
// reports the blast radius of a proposed change to one file.
func (s *Service) RippleEffect(ctx context.Context, sessionID, changedFile, changedFunction string) (*graph.RippleResult, error) {
	ctx, span := s.startSpan(ctx, "review.ripple_effect", sessionID)
	defer span.End()

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	g := graph.Build(session.Context, session.WorkingDir)
	result := g.RippleEffect(changedFile, changedFunction)
	if result == nil {
		return nil, apperrors.WithMetadata(apperrors.CodeGraphUnknownFile,
			"file is not part of the dependency graph",
			map[string]string{"file": changedFile})
	}
	return result, nil
}

// MediatorSummary reports graph statistics and the session's intervention
// history.
func (s *Service) MediatorSummary(ctx context.Context, sessionID string) (*graph.Summary, error) {
	ctx, span := s.startSpan(ctx, "review.mediator_summary", sessionID)
	defer span.End()

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	g := graph.Build(session.Context, session.WorkingDir)
	summary := g.Summarize(session)
	return &summary, nil
}
