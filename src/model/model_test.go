package model

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/username/kncbank/web/src/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "model.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)

	s := &Session{ID: "sid-1", Username: "alice", UserAgent: "test", ExpiresAt: time.Now().Add(time.Hour)}
	if err := CreateSession(db, s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := GetSessionByID(db, "sid-1")
	if err != nil {
		t.Fatalf("GetSessionByID: %v", err)
	}
	if got.Username != "alice" || got.UserAgent != "test" {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := DeleteSessionByID(db, "sid-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := GetSessionByID(db, "sid-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := DeleteSessionByID(db, "sid-1"); err != nil {
		t.Fatalf("deleting twice should be harmless: %v", err)
	}
}

func TestExpiredSessionsAreInvisibleAndPurged(t *testing.T) {
	db := openTestDB(t)

	old := &Session{ID: "old", Username: "bob", ExpiresAt: time.Now().Add(-time.Minute)}
	if err := CreateSession(db, old); err != nil {
		t.Fatal(err)
	}
	if _, err := GetSessionByID(db, "old"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired session should not resolve, got %v", err)
	}
	n, err := DeleteExpiredSessions(db, time.Now())
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredSessions = %d, %v", n, err)
	}
}

func TestSubmissionJournal(t *testing.T) {
	db := openTestDB(t)

	first := &SubmissionEntry{CorrelationID: "c1", Username: "alice", Kind: "withdraw", Amount: "250.00",
		Outcome: OutcomeSucceeded, ReferenceNumber: "2025100001", NewBalance: "750.00",
		CreatedAt: time.Now().Add(-time.Minute).UTC()}
	second := &SubmissionEntry{CorrelationID: "c2", Username: "alice", Kind: "pay_bills", Amount: "10.00",
		Counterparty: "Meralco", Outcome: OutcomeRejected, Message: "Company not found"}
	other := &SubmissionEntry{CorrelationID: "c3", Username: "bob", Kind: "deposit", Amount: "100.00", Outcome: OutcomeTransport}

	for _, e := range []*SubmissionEntry{first, second, other} {
		if err := InsertSubmission(db, e); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := ListSubmissions(db, "alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for alice, got %d", len(entries))
	}
	if entries[0].CorrelationID != "c2" || entries[0].Counterparty != "Meralco" {
		t.Fatalf("newest entry first expected, got %+v", entries[0])
	}
	if entries[1].NewBalance != "750.00" {
		t.Fatalf("new balance not stored: %+v", entries[1])
	}
}
