package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/crosscheck/internal/platform/errors"
)

// Status is the session lifecycle state.
type Status string

const (
	// StatusInitialized means the session was created but no round ran yet.
	StatusInitialized Status = "initialized"
	// StatusVerifying means at least one round has been submitted.
	StatusVerifying Status = "verifying"
	// StatusConverged means the session was ended, by convergence or verdict.
	StatusConverged Status = "converged"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusInitialized, StatusVerifying, StatusConverged:
		return true
	}
	return false
}

// Role identifies which side of the adversarial review acts in a round.
type Role string

const (
	// RoleVerifier argues that the target satisfies the requirements.
	RoleVerifier Role = "verifier"
	// RoleCritic challenges the verifier's claims.
	RoleCritic Role = "critic"
)

// Valid reports whether the role is one of the two review roles.
func (r Role) Valid() bool {
	return r == RoleVerifier || r == RoleCritic
}

// Alternate returns the opposing role.
func (r Role) Alternate() Role {
	if r == RoleVerifier {
		return RoleCritic
	}
	return RoleVerifier
}

// Verdict is the caller-supplied outcome when a session is ended.
type Verdict string

const (
	// VerdictPass means the target satisfied the requirements.
	VerdictPass Verdict = "PASS"
	// VerdictFail means the target did not satisfy the requirements.
	VerdictFail Verdict = "FAIL"
	// VerdictConditional means the target passes with reservations.
	VerdictConditional Verdict = "CONDITIONAL"
)

// Valid reports whether the verdict is a known outcome.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictPass, VerdictFail, VerdictConditional:
		return true
	}
	return false
}

// Layer tags where a context file came from.
type Layer string

const (
	// LayerBase marks files collected when the session started.
	LayerBase Layer = "base"
	// LayerDiscovered marks files found in round output mid-session.
	LayerDiscovered Layer = "discovered"
)

// FileContext is one file's snapshot inside the verification context.
// Layer and DiscoveredRound are immutable once the file is added.
type FileContext struct {
	Path       string
	Content    string
	References []string
	Layer      Layer
	// DiscoveredRound is the round that surfaced the file; zero for base files.
	DiscoveredRound int
	// VerifiedRound is the first verifier round that referenced the file;
	// zero until that happens.
	VerifiedRound int
}

// VerificationContext is the layered file view owned by a session. Lookup is
// by path; Order preserves insertion order for reporting and deterministic
// graph construction.
type VerificationContext struct {
	Files map[string]*FileContext
	Order []string
}

// NewVerificationContext returns an empty context.
func NewVerificationContext() *VerificationContext {
	return &VerificationContext{Files: map[string]*FileContext{}}
}

// Add inserts a file if its path is not already present. It reports whether
// the file was added; a second add of the same path is a no-op, so layer and
// discovery round never change after the first insertion.
func (vc *VerificationContext) Add(fc *FileContext) bool {
	if fc == nil || fc.Path == "" {
		return false
	}
	if _, exists := vc.Files[fc.Path]; exists {
		return false
	}
	vc.Files[fc.Path] = fc
	vc.Order = append(vc.Order, fc.Path)
	return true
}

// Get returns the file context for path, or nil.
func (vc *VerificationContext) Get(path string) *FileContext {
	return vc.Files[path]
}

// Len returns the number of files in context.
func (vc *VerificationContext) Len() int {
	return len(vc.Order)
}

// Paths returns file paths in insertion order.
func (vc *VerificationContext) Paths() []string {
	out := make([]string, len(vc.Order))
	copy(out, vc.Order)
	return out
}

// MarkVerified records the first verifier round that touched each path.
func (vc *VerificationContext) MarkVerified(paths []string, round int) {
	for _, path := range paths {
		if fc, ok := vc.Files[path]; ok && fc.VerifiedRound == 0 {
			fc.VerifiedRound = round
		}
	}
}

// Round is one immutable contribution by a single role.
type Round struct {
	Number          int
	Role            Role
	Output          string
	IssuesRaised    []string
	IssuesResolved  []string
	ContextExpanded bool
	NewFiles        []string
	Timestamp       time.Time
}

// Checkpoint is a restorable snapshot taken at a round boundary. It is never
// mutated after creation.
type Checkpoint struct {
	Round        int
	Timestamp    time.Time
	ContextPaths []string
	Issues       []Issue
	CanRollback  bool
}

// Session is the root aggregate for one adversarial review.
type Session struct {
	ID           string
	Target       string
	Requirements string
	WorkingDir   string
	Status       Status
	CurrentRound int
	RoundBudget  int
	Context      *VerificationContext
	Issues       []Issue
	Rounds       []Round
	Checkpoints  []Checkpoint
	// MediatorInterventions counts graph-derived interventions emitted over
	// the session's lifetime.
	MediatorInterventions int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// sessionIDPattern restricts identifiers to a storage-safe character set.
// Identifiers derive storage locations, so anything outside this set is
// rejected before touching storage.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidSessionID reports whether id is safe to use as a storage key.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// NewSessionID derives a session identifier from the target, a timestamp,
// and a random suffix. The target portion is sanitized down to the safe
// character set.
func NewSessionID(target string, now time.Time, suffix string) string {
	slug := sanitizeTarget(target)
	if slug == "" {
		slug = "review"
	}
	id := slug + "-" + now.UTC().Format("20060102T150405") + "-" + suffix
	if len(id) > 128 {
		id = id[:128]
	}
	return id
}

func sanitizeTarget(target string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(target) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '/' || r == '\\' || r == '.' || r == ' ' || r == '_' || r == '-':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if len(slug) > 48 {
		slug = slug[:48]
	}
	return slug
}

// NewSession creates a session in the initialized state with an empty
// context.
func NewSession(id, target, requirements, workingDir string, roundBudget int, now time.Time) (*Session, error) {
	if roundBudget < 1 {
		return nil, apperrors.New(apperrors.CodeSessionInvalidBudget, "round budget must be at least 1")
	}
	return &Session{
		ID:           id,
		Target:       target,
		Requirements: requirements,
		WorkingDir:   workingDir,
		Status:       StatusInitialized,
		RoundBudget:  roundBudget,
		Context:      NewVerificationContext(),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

// AppendRound appends the next round and advances the round counter,
// maintaining CurrentRound == len(Rounds).
func (s *Session) AppendRound(round Round) {
	round.Number = len(s.Rounds) + 1
	s.Rounds = append(s.Rounds, round)
	s.CurrentRound = len(s.Rounds)
	if s.Status == StatusInitialized {
		s.Status = StatusVerifying
	}
}

// TakeCheckpoint snapshots the issue ledger and context paths at the current
// round boundary. The issue copy is deep so later mutations never leak into
// the checkpoint.
func (s *Session) TakeCheckpoint(now time.Time) Checkpoint {
	cp := Checkpoint{
		Round:        s.CurrentRound,
		Timestamp:    now.UTC(),
		ContextPaths: s.Context.Paths(),
		Issues:       CloneIssues(s.Issues),
		CanRollback:  true,
	}
	s.Checkpoints = append(s.Checkpoints, cp)
	return cp
}

// FindCheckpoint returns the most recent rollback-eligible checkpoint taken
// at exactly toRound, or nil.
func (s *Session) FindCheckpoint(toRound int) *Checkpoint {
	for i := len(s.Checkpoints) - 1; i >= 0; i-- {
		if s.Checkpoints[i].Round == toRound && s.Checkpoints[i].CanRollback {
			return &s.Checkpoints[i]
		}
	}
	return nil
}

// RollbackTo restores the session to the checkpoint at toRound: the round
// log is truncated, the issue ledger is replaced by the checkpoint's deep
// copy, and status is forced back to verifying. Discovered context files are
// kept; context only grows. Rollback never moves forward: checkpoints taken
// after toRound describe rounds the rollback discards, so they lose their
// rollback eligibility.
func (s *Session) RollbackTo(toRound int) error {
	if toRound > s.CurrentRound {
		return apperrors.WithMetadata(apperrors.CodeCheckpointNotFound,
			"rollback target is ahead of the current round",
			map[string]string{"round": strconv.Itoa(toRound)})
	}
	cp := s.FindCheckpoint(toRound)
	if cp == nil {
		return apperrors.WithMetadata(apperrors.CodeCheckpointNotFound,
			"no rollback-eligible checkpoint at requested round",
			map[string]string{"round": strconv.Itoa(toRound)})
	}
	if toRound < len(s.Rounds) {
		s.Rounds = s.Rounds[:toRound]
	}
	s.CurrentRound = toRound
	s.Issues = CloneIssues(cp.Issues)
	s.Status = StatusVerifying
	for i := range s.Checkpoints {
		if s.Checkpoints[i].Round > toRound {
			s.Checkpoints[i].CanRollback = false
		}
	}
	return nil
}
