package file

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/storage"
)

const (
	// SessionFilePrefix names the blob holding the serialized session handle.
	SessionFilePrefix = "psm_session"
	// CookieExpirationFilePrefix names the blob holding the cookie expiration.
	CookieExpirationFilePrefix = "psm_cookie_exp"
)

// Store keeps session state as two files per configuration identifier under root.
type Store struct {
	root string
}

// Ensure Store implements SessionStore.
var _ storage.SessionStore = (*Store)(nil)

// New creates a file store rooted at dir. An empty dir uses os.TempDir().
func New(dir string) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Store{root: dir}
}

func (s *Store) sessionPath(configID string) string {
	return filepath.Join(s.root, fmt.Sprintf("%s_%s", SessionFilePrefix, fileKey(configID)))
}

func (s *Store) expirationPath(configID string) string {
	return filepath.Join(s.root, fmt.Sprintf("%s_%s", CookieExpirationFilePrefix, fileKey(configID)))
}

// Load reads both blobs. A missing session blob is reported as domain.ErrNotFound.
func (s *Store) Load(ctx context.Context, configID string) (*domain.SessionRecord, error) {
	handle, err := os.ReadFile(s.sessionPath(configID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	expData, err := os.ReadFile(s.expirationPath(configID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading cookie expiration file: %w", err)
	}

	var exp *int64
	if err := json.Unmarshal(expData, &exp); err != nil {
		return nil, fmt.Errorf("parsing cookie expiration file: %w", err)
	}

	return &domain.SessionRecord{
		Handle:    handle,
		ExpiresAt: domain.ExpirationFromUnix(exp),
	}, nil
}

// Save writes both blobs, each atomically.
func (s *Store) Save(ctx context.Context, configID string, record *domain.SessionRecord) error {
	if record == nil {
		record = &domain.SessionRecord{}
	}

	expData, err := json.Marshal(record.ExpirationUnix())
	if err != nil {
		return fmt.Errorf("marshaling cookie expiration: %w", err)
	}

	if err := writeFileAtomic(s.sessionPath(configID), record.Handle); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := writeFileAtomic(s.expirationPath(configID), expData); err != nil {
		return fmt.Errorf("writing cookie expiration file: %w", err)
	}
	return nil
}

// Clear overwrites both blobs with an empty record.
func (s *Store) Clear(ctx context.Context, configID string) error {
	return s.Save(ctx, configID, &domain.SessionRecord{})
}

// Remove deletes both blobs, ignoring ones that do not exist.
func (s *Store) Remove(ctx context.Context, configID string) error {
	var errs []error
	for _, p := range []string{s.sessionPath(configID), s.expirationPath(configID)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) Close() error { return nil }

// writeFileAtomic writes data to a temp file in the same directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// fileKey maps a config id to a file name suffix inside the store directory.
// Ids made only of [A-Za-z0-9._-] are used as is. Any other id is encoded
// behind a '~', which plain ids never contain, so distinct ids never share
// a file.
func fileKey(configID string) string {
	if configID == "" {
		configID = domain.DefaultConfigID
	}
	if configID != "." && configID != ".." && plainID(configID) {
		return configID
	}
	return "~" + base64.RawURLEncoding.EncodeToString([]byte(configID))
}

func plainID(id string) bool {
	for i := 0; i < len(id); i++ {
		switch c := id[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
