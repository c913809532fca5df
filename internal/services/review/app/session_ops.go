package app

import (
	"context"

	apperrors "github.com/louisbranch/crosscheck/internal/platform/errors"
	"github.com/louisbranch/crosscheck/internal/services/review/domain"
	"github.com/louisbranch/crosscheck/internal/services/review/storage"
)

// StartResult reports the outcome of creating a session.
type StartResult struct {
	SessionID    string
	Status       domain.Status
	RoundBudget  int
	ContextFiles int
	SkippedPaths []string
	NextRole     string
}

// Start creates a new session, collects base context from the working
// directory, and persists it. A target that resolves to no readable files is
// still a valid session: the review proceeds against requirements alone.
func (s *Service) Start(ctx context.Context, target, requirements, workingDir string, roundBudget int) (*StartResult, error) {
	ctx, span := s.startSpan(ctx, "review.start", "")
	defer span.End()

	if target == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "target is required")
	}
	if requirements == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "requirements are required")
	}

	suffix, err := s.newSuffix()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "generate session suffix", err)
	}
	now := s.now().UTC()
	sessionID := domain.NewSessionID(target, now, suffix)

	session, err := domain.NewSession(sessionID, target, requirements, workingDir, roundBudget, now)
	if err != nil {
		return nil, err
	}

	skipped := s.collectBaseContext(session)
	for _, p := range skipped {
		s.logger.Printf("review: session %s skipped unreadable path %s", sessionID, p)
	}

	if err := s.persistSession(ctx, session); err != nil {
		return nil, err
	}

	return &StartResult{
		SessionID:    session.ID,
		Status:       session.Status,
		RoundBudget:  session.RoundBudget,
		ContextFiles: session.Context.Len(),
		SkippedPaths: skipped,
		NextRole:     string(domain.RoleVerifier),
	}, nil
}

// FileView is one context file in the read-only projection.
type FileView struct {
	Path            string
	Layer           domain.Layer
	DiscoveredRound int
	VerifiedRound   int
	References      []string
	Bytes           int
}

// ContextView is the read-only context projection returned by GetContext.
type ContextView struct {
	SessionID    string
	Target       string
	Requirements string
	Status       domain.Status
	CurrentRound int
	RoundBudget  int
	Files        []FileView
	IssueCounts  map[domain.IssueStatus]int
}

// GetContext returns the session's layered file view plus round and issue
// summaries. It never mutates the session.
func (s *Service) GetContext(ctx context.Context, sessionID string) (*ContextView, error) {
	ctx, span := s.startSpan(ctx, "review.get_context", sessionID)
	defer span.End()

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	view := &ContextView{
		SessionID:    session.ID,
		Target:       session.Target,
		Requirements: session.Requirements,
		Status:       session.Status,
		CurrentRound: session.CurrentRound,
		RoundBudget:  session.RoundBudget,
		IssueCounts:  map[domain.IssueStatus]int{},
	}
	for _, p := range session.Context.Paths() {
		fc := session.Context.Get(p)
		view.Files = append(view.Files, FileView{
			Path:            fc.Path,
			Layer:           fc.Layer,
			DiscoveredRound: fc.DiscoveredRound,
			VerifiedRound:   fc.VerifiedRound,
			References:      fc.References,
			Bytes:           len(fc.Content),
		})
	}
	for _, issue := range session.Issues {
		view.IssueCounts[issue.Status]++
	}
	return view, nil
}

// EndResult summarizes a session at the moment it was ended.
type EndResult struct {
	SessionID  string
	Verdict    domain.Verdict
	Rounds     int
	Summary    map[domain.Severity]domain.SeverityCounts
	Unresolved int
}

// EndSession records the caller's verdict, marks every non-resolved finding
// terminally unresolved, persists, and evicts the session from the cache.
func (s *Service) EndSession(ctx context.Context, sessionID string, verdict domain.Verdict) (*EndResult, error) {
	ctx, span := s.startSpan(ctx, "review.end_session", sessionID)
	defer span.End()

	if !verdict.Valid() {
		return nil, apperrors.WithMetadata(apperrors.CodeSessionInvalidVerdict,
			"verdict must be PASS, FAIL, or CONDITIONAL",
			map[string]string{"verdict": string(verdict)})
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.StatusConverged {
		return nil, apperrors.New(apperrors.CodeSessionEnded, "session already ended")
	}

	unresolved := 0
	for i := range session.Issues {
		if session.Issues[i].Status != domain.IssueResolved {
			session.Issues[i].Status = domain.IssueUnresolved
			unresolved++
		}
	}
	session.Status = domain.StatusConverged

	if err := s.persistSession(ctx, session); err != nil {
		return nil, err
	}
	s.evict(sessionID)

	return &EndResult{
		SessionID:  session.ID,
		Verdict:    verdict,
		Rounds:     session.CurrentRound,
		Summary:    session.CountBySeverity(),
		Unresolved: unresolved,
	}, nil
}

// ListSessions enumerates persisted session summaries.
func (s *Service) ListSessions(ctx context.Context) ([]storage.SessionSummary, error) {
	ctx, span := s.startSpan(ctx, "review.list_sessions", "")
	defer span.End()

	summaries, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "list sessions", err)
	}
	return summaries, nil
}
