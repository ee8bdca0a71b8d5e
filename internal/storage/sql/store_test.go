package sql_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/storage/sql"
)

func newSQLiteStore(t *testing.T) *sql.Store {
	t.Helper()
	store, err := sql.New("sqlite3", filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	if _, err := store.Load(ctx, "psm"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on empty store, got %v", err)
	}

	exp := time.Unix(1893456000, 0)
	if err := store.Save(ctx, "psm", &domain.SessionRecord{Handle: []byte("first"), ExpiresAt: &exp}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Second save overwrites.
	later := exp.Add(time.Hour)
	if err := store.Save(ctx, "psm", &domain.SessionRecord{Handle: []byte("second"), ExpiresAt: &later}); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	got, err := store.Load(ctx, "psm")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got.Handle) != "second" {
		t.Errorf("Expected handle 'second', got %q", got.Handle)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(later) {
		t.Errorf("Expected expiration %v, got %v", later, got.ExpiresAt)
	}
}

func TestSQLiteClearAndRemove(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	exp := time.Now().Add(time.Hour)
	if err := store.Save(ctx, "psm", &domain.SessionRecord{Handle: []byte("h"), ExpiresAt: &exp}); err != nil {
		t.Fatal(err)
	}

	if err := store.Clear(ctx, "psm"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	got, err := store.Load(ctx, "psm")
	if err != nil {
		t.Fatalf("Load after clear failed: %v", err)
	}
	if len(got.Handle) != 0 || got.ExpiresAt != nil {
		t.Errorf("Expected empty record, got %+v", got)
	}

	if err := store.Remove(ctx, "psm"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := store.Remove(ctx, "psm"); err != nil {
		t.Errorf("Expected removing absent state to succeed, got %v", err)
	}
	if _, err := store.Load(ctx, "psm"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after remove, got %v", err)
	}
}
