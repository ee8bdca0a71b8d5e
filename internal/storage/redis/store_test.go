package redis_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/storage/redis"
	"github.com/google/uuid"
)

func newRedisStore(t *testing.T) *redis.Store {
	t.Helper()
	addr := os.Getenv("PSM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PSM_TEST_REDIS_ADDR not set")
	}
	store, err := redis.New(context.Background(), redis.Config{
		Addr:      addr,
		KeyPrefix: "psm:test:" + uuid.NewString() + ":",
	})
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)
	t.Cleanup(func() { store.Remove(ctx, "psm") })

	if _, err := store.Load(ctx, "psm"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	exp := time.Unix(1893456000, 0)
	if err := store.Save(ctx, "psm", &domain.SessionRecord{Handle: []byte("h"), ExpiresAt: &exp}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Load(ctx, "psm")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got.Handle) != "h" || got.ExpiresAt == nil || !got.ExpiresAt.Equal(exp) {
		t.Errorf("Unexpected record: %+v", got)
	}

	if err := store.Clear(ctx, "psm"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	got, err = store.Load(ctx, "psm")
	if err != nil {
		t.Fatalf("Load after clear failed: %v", err)
	}
	if len(got.Handle) != 0 || got.ExpiresAt != nil {
		t.Errorf("Expected empty record, got %+v", got)
	}

	if err := store.Remove(ctx, "psm"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := store.Load(ctx, "psm"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after remove, got %v", err)
	}
}
