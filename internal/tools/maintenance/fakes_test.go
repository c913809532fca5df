package maintenance

import (
	"context"

	"github.com/louisbranch/crosscheck/internal/services/review/storage"
)

type fakeStore struct {
	summaries []storage.SessionSummary
	records   []storage.SessionRecord

	listErr   error
	deleteErr error

	deleted []string
	closed  bool
}

func (f *fakeStore) ListSessions(ctx context.Context) ([]storage.SessionSummary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.summaries, nil
}

func (f *fakeStore) ListRecords(ctx context.Context) ([]storage.SessionRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}
