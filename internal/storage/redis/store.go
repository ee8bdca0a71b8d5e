package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "psm:session:"

	fieldSession    = "session"
	fieldExpiration = "cookie_expiration"
)

// Config for the Redis-backed session store.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Store keeps one hash per configuration identifier.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// Ensure Store implements SessionStore.
var _ storage.SessionStore = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB})
	if err := cl.Ping(ctx).Err(); err != nil {
		cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(cl, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(cl *redis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Store{client: cl, keyPrefix: keyPrefix}
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(configID string) string { return s.keyPrefix + configID }

func (s *Store) Load(ctx context.Context, configID string) (*domain.SessionRecord, error) {
	vals, err := s.client.HGetAll(ctx, s.key(configID)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	session, ok := vals[fieldSession]
	if !ok {
		return nil, domain.ErrNotFound
	}

	rec := &domain.SessionRecord{Handle: []byte(session)}
	if raw := vals[fieldExpiration]; raw != "" {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing cookie expiration: %w", err)
		}
		rec.ExpiresAt = domain.ExpirationFromUnix(&sec)
	}
	return rec, nil
}

func (s *Store) Save(ctx context.Context, configID string, record *domain.SessionRecord) error {
	if record == nil {
		record = &domain.SessionRecord{}
	}
	exp := ""
	if sec := record.ExpirationUnix(); sec != nil {
		exp = strconv.FormatInt(*sec, 10)
	}

	err := s.client.HSet(ctx, s.key(configID),
		fieldSession, string(record.Handle),
		fieldExpiration, exp,
	).Err()
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, configID string) error {
	return s.Save(ctx, configID, &domain.SessionRecord{})
}

func (s *Store) Remove(ctx context.Context, configID string) error {
	if err := s.client.Del(ctx, s.key(configID)).Err(); err != nil {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}
