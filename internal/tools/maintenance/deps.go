package maintenance

import (
	"context"

	"github.com/louisbranch/crosscheck/internal/services/review/storage"
)

// sessionStore is the slice of the sqlite store maintenance needs, plus Close
// for resource cleanup.
type sessionStore interface {
	ListSessions(ctx context.Context) ([]storage.SessionSummary, error)
	ListRecords(ctx context.Context) ([]storage.SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error
	Close() error
}
