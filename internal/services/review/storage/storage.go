// Package storage defines the session persistence contract and the
// versioned session document codec shared by its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/crosscheck/internal/services/review/domain"
)

var (
	// ErrNotFound indicates a requested session record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a requested write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
	// ErrMalformed indicates a stored session document failed schema-on-read
	// validation. Callers treat it as not-found; it exists as a distinct
	// sentinel so load paths can log it for operator visibility.
	ErrMalformed = errors.New("malformed session document")
)

// SessionSummary is the listing projection of one stored session.
type SessionSummary struct {
	ID           string
	Status       string
	Target       string
	CurrentRound int
	Version      int64
	UpdatedAt    time.Time
}

// SessionRecord is one raw stored session row, payload included. Maintenance
// tooling reads records to validate documents without trusting them.
type SessionRecord struct {
	ID        string
	Version   int64
	Status    string
	Target    string
	UpdatedAt time.Time
	Payload   []byte
}

// IssueRecord is one denormalized issue projection row, rewritten from the
// session document on every save.
type IssueRecord struct {
	SessionID     string
	IssueID       string
	Category      string
	Severity      string
	Status        string
	RaisedBy      string
	RaisedRound   int
	ResolvedRound int
	Summary       string
}

// SessionStore persists whole-session documents, last-write-wins at session
// granularity.
type SessionStore interface {
	// PutSession writes the full session document, bumping its version.
	PutSession(ctx context.Context, session *domain.Session) error
	// GetSession loads and validates one session. Returns ErrNotFound for a
	// missing id and ErrMalformed for a document that fails validation.
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	// ListSessions enumerates stored session summaries.
	ListSessions(ctx context.Context) ([]SessionSummary, error)
	// DeleteSession removes one session. Missing ids return ErrNotFound.
	DeleteSession(ctx context.Context, id string) error
}

// IssueRows derives projection rows from a session's ledger.
func IssueRows(session *domain.Session) []IssueRecord {
	rows := make([]IssueRecord, 0, len(session.Issues))
	for _, issue := range session.Issues {
		rows = append(rows, IssueRecord{
			SessionID:     session.ID,
			IssueID:       issue.ID,
			Category:      string(issue.Category),
			Severity:      string(issue.Severity),
			Status:        string(issue.Status),
			RaisedBy:      string(issue.RaisedBy),
			RaisedRound:   issue.RaisedRound,
			ResolvedRound: issue.ResolvedRound,
			Summary:       issue.Summary,
		})
	}
	return rows
}
