package domain

import "time"

// DefaultConfigID keys the session of a configuration that does not name one.
const DefaultConfigID = "generic"

// SessionRecord is the cached authentication state for one configuration.
// Handle is opaque to everything but the HTTP layer that produced it.
type SessionRecord struct {
	Handle    []byte     `json:"session" db:"session"`
	ExpiresAt *time.Time `json:"cookie_expiration" db:"-"`
}

// Valid reports whether the record can be used without logging in again.
func (r *SessionRecord) Valid(now time.Time) bool {
	if r == nil || r.ExpiresAt == nil {
		return false
	}
	return r.ExpiresAt.After(now)
}

// ExpirationUnix returns the expiration as epoch seconds, or nil.
func (r *SessionRecord) ExpirationUnix() *int64 {
	if r == nil || r.ExpiresAt == nil {
		return nil
	}
	sec := r.ExpiresAt.Unix()
	return &sec
}

// ExpirationFromUnix converts stored epoch seconds back to a timestamp.
func ExpirationFromUnix(sec *int64) *time.Time {
	if sec == nil {
		return nil
	}
	t := time.Unix(*sec, 0)
	return &t
}
