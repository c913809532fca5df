package app

import (
	"context"

	apperrors "github.com/louisbranch/crosscheck/internal/platform/errors"
	"github.com/louisbranch/crosscheck/internal/services/review/core/filter"
	"github.com/louisbranch/crosscheck/internal/services/review/domain"
	"github.com/louisbranch/crosscheck/internal/services/review/storage"
)

// GetIssues returns the session's findings through one of the fixed views:
// all, unresolved, or critical.
func (s *Service) GetIssues(ctx context.Context, sessionID string, view domain.IssueFilter) ([]domain.Issue, error) {
	ctx, span := s.startSpan(ctx, "review.get_issues", sessionID)
	defer span.End()

	if view == "" {
		view = domain.FilterAll
	}
	if !view.Valid() {
		return nil, apperrors.WithMetadata(apperrors.CodeIssueInvalidFilter,
			"filter must be all, unresolved, or critical",
			map[string]string{"filter": string(view)})
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.FilterIssues(view), nil
}

// issueQuerier is the optional store capability backing expression-based
// issue queries. Only the SQLite store provides a projection to query.
type issueQuerier interface {
	QueryIssues(ctx context.Context, sessionID string, cond filter.SQLCondition) ([]storage.IssueRecord, error)
}

// ListIssuesFiltered runs an AIP-160 filter expression against the issue
// projection. The session is loaded first so a missing session is reported
// as not-found rather than an empty result.
func (s *Service) ListIssuesFiltered(ctx context.Context, sessionID, expression string) ([]storage.IssueRecord, error) {
	ctx, span := s.startSpan(ctx, "review.list_issues", sessionID)
	defer span.End()

	querier, ok := s.store.(issueQuerier)
	if !ok {
		return nil, apperrors.New(apperrors.CodeValidation,
			"issue filter expressions require the sqlite-backed store")
	}

	cond, err := filter.ParseIssueFilter(expression)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIssueInvalidFilter, "parse issue filter", err)
	}

	if _, err := s.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}

	records, err := querier.QueryIssues(ctx, sessionID, cond)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "query issue projection", err)
	}
	return records, nil
}
