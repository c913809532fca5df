package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/crosscheck/internal/services/review/domain"
	"github.com/louisbranch/crosscheck/internal/services/review/storage"
)

func TestPutGetReturnsDeepCopy(t *testing.T) {
	t.Parallel()

	store := New()
	session := testSession(t, "copy-session")
	if err := store.PutSession(context.Background(), session); err != nil {
		t.Fatalf("put session: %v", err)
	}

	got, err := store.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}

	got.Issues[0].Status = domain.IssueResolved
	got.Context.Add(&domain.FileContext{Path: "sneaky.go", Content: "x", Layer: domain.LayerDiscovered, DiscoveredRound: 1})

	again, err := store.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("get session again: %v", err)
	}
	if again.Issues[0].Status != domain.IssueRaised {
		t.Fatalf("stored issue status mutated to %q", again.Issues[0].Status)
	}
	if again.Context.Len() != 1 {
		t.Fatalf("stored context len = %d, want 1", again.Context.Len())
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := New()
	if _, err := store.GetSession(context.Background(), "absent"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	store := New()
	session := testSession(t, "delete-session")
	if err := store.PutSession(context.Background(), session); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if err := store.DeleteSession(context.Background(), session.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if err := store.DeleteSession(context.Background(), session.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	t.Parallel()

	store := New()
	older := testSession(t, "older")
	older.UpdatedAt = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	newer := testSession(t, "newer")
	newer.UpdatedAt = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	for _, s := range []*domain.Session{older, newer} {
		if err := store.PutSession(context.Background(), s); err != nil {
			t.Fatalf("put session %s: %v", s.ID, err)
		}
	}

	summaries, err := store.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(summaries) != 2 || summaries[0].ID != "newer" {
		t.Fatalf("summaries = %+v, want newer first", summaries)
	}
}

func TestPutBumpsVersion(t *testing.T) {
	t.Parallel()

	store := New()
	session := testSession(t, "versioned")
	for i := 0; i < 2; i++ {
		if err := store.PutSession(context.Background(), session); err != nil {
			t.Fatalf("put session: %v", err)
		}
	}
	summaries, err := store.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if summaries[0].Version != 2 {
		t.Fatalf("version = %d, want 2", summaries[0].Version)
	}
}

func testSession(t *testing.T, id string) *domain.Session {
	t.Helper()

	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	session, err := domain.NewSession(id, "payment module", "charges are idempotent", "/src/pay", 8, now)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	session.Context.Add(&domain.FileContext{Path: "pay/charge.go", Content: "package pay", Layer: domain.LayerBase})
	session.UpsertIssue(domain.Issue{
		ID: "FUNC-001", Category: domain.CategoryFunctionality, Severity: domain.SeverityHigh,
		Summary: "double charge on retry", RaisedBy: domain.RoleCritic, RaisedRound: 1, Status: domain.IssueRaised,
	})
	session.AppendRound(domain.Round{Role: domain.RoleVerifier, Output: "checked charge flow", Timestamp: now})
	return session
}
