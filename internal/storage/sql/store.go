package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store implements storage.SessionStore using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Ensure Store implements SessionStore.
var _ storage.SessionStore = (*Store)(nil)

// New creates a new SQL store and brings its schema up to date.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Run migrations
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type sessionRow struct {
	Session          string        `db:"session"`
	CookieExpiration sql.NullInt64 `db:"cookie_expiration"`
}

func (s *Store) Load(ctx context.Context, configID string) (*domain.SessionRecord, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT session, cookie_expiration FROM psm_sessions WHERE config_id = $1`, configID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	rec := &domain.SessionRecord{Handle: []byte(row.Session)}
	if row.CookieExpiration.Valid {
		rec.ExpiresAt = domain.ExpirationFromUnix(&row.CookieExpiration.Int64)
	}
	return rec, nil
}

func (s *Store) Save(ctx context.Context, configID string, record *domain.SessionRecord) error {
	if record == nil {
		record = &domain.SessionRecord{}
	}

	var exp sql.NullInt64
	if sec := record.ExpirationUnix(); sec != nil {
		exp = sql.NullInt64{Int64: *sec, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO psm_sessions (config_id, session, cookie_expiration, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (config_id) DO UPDATE SET
		   session = excluded.session,
		   cookie_expiration = excluded.cookie_expiration,
		   updated_at = excluded.updated_at`,
		configID, string(record.Handle), exp, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, configID string) error {
	return s.Save(ctx, configID, &domain.SessionRecord{})
}

func (s *Store) Remove(ctx context.Context, configID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM psm_sessions WHERE config_id = $1`, configID); err != nil {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}
