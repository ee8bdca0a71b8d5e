package psm

import (
	"context"
	"log/slog"
	"time"

	"github.com/bcnelson/psm-connector/internal/domain"
)

// expireSkew is how far in the past ExpireCookie moves the expiration.
const expireSkew = 100 * time.Second

// ExpireCookie logs in and then persists an already-expired expiration, so the
// next invocation has to log in again. Only the login can fail; persisting the
// expired state is best effort.
func (c *Client) ExpireCookie(ctx context.Context) error {
	if err := c.Login(ctx); err != nil {
		return err
	}

	exp := time.Unix(c.now().Unix(), 0).Add(-expireSkew)
	if sid := findCookie(c.cookies, SessionCookieName); sid != nil {
		sid.Expires = exp
	}
	handle, err := encodeCookies(c.cookies)
	if err != nil {
		c.logger.WarnContext(ctx, "Debug: Error expiring session cookie on disk", slog.Any("error", err))
		return nil
	}

	c.record = &domain.SessionRecord{Handle: handle, ExpiresAt: &exp}
	if err := c.store.Save(ctx, c.configID, c.record); err != nil {
		c.logger.WarnContext(ctx, "Debug: Error expiring session cookie on disk", slog.Any("error", err))
		return nil
	}
	c.logger.DebugContext(ctx, "Debug: Session cookie expired on disk", slog.Time("expires", exp))
	return nil
}

// ResetState stores an empty session record. Failures are logged, never returned.
func (c *Client) ResetState(ctx context.Context) {
	c.forget()
	if err := c.store.Clear(ctx, c.configID); err != nil {
		c.logger.WarnContext(ctx, "Debug: Error resetting session state", slog.Any("error", err))
		return
	}
	c.logger.DebugContext(ctx, "Debug: Session state reset")
}

// RemoveState deletes the stored session. Failures are logged, never returned.
func (c *Client) RemoveState(ctx context.Context) {
	c.forget()
	if err := c.store.Remove(ctx, c.configID); err != nil {
		c.logger.WarnContext(ctx, "Debug: Error removing session state", slog.Any("error", err))
		return
	}
	c.logger.DebugContext(ctx, "Debug: Session state removed")
}

// forget drops the in-memory session so the next request logs in.
func (c *Client) forget() {
	c.record = nil
	c.cookies = nil
	c.loaded = true
}
