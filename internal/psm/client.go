// Package psm talks to a Pensando Policy Services Manager appliance.
//
// A Client owns the session for one configuration identifier. The session
// cookie is cached in a storage.SessionStore so that separate invocations,
// each in its own process, reuse it until it expires. Requests answered with
// 401 trigger exactly one re-login and one retry.
package psm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bcnelson/psm-connector/internal/config"
	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/storage"
)

// maxAuthRetries bounds how many times a request is replayed after a 401.
const maxAuthRetries = 1

// Client is the session manager for one appliance configuration.
type Client struct {
	cfg      config.ApplianceConfig
	configID string
	store    storage.SessionStore
	http     *http.Client
	logger   *slog.Logger
	now      func() time.Time

	loaded  bool
	record  *domain.SessionRecord
	cookies []*http.Cookie
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from the configuration.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides the time source used for expiration checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client. It performs no I/O; the session is loaded lazily.
func New(cfg config.ApplianceConfig, store storage.SessionStore, opts ...Option) *Client {
	c := &Client{
		cfg:      cfg,
		configID: cfg.SessionKey(),
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !cfg.VerifySSL}
		c.http = &http.Client{Transport: transport}
	}
	c.logger = c.logger.With(slog.String("config_id", c.configID))
	return c
}

// Tenant returns the tenant the client operates in.
func (c *Client) Tenant() string {
	return c.cfg.Tenant
}

// EnsureValid loads the cached session and logs in if it is missing or expired.
func (c *Client) EnsureValid(ctx context.Context) error {
	if !c.loaded {
		c.loadState(ctx)
		c.loaded = true
	}

	switch {
	case c.record == nil || c.record.ExpiresAt == nil:
		c.logger.InfoContext(ctx, "Authentication cookie not found. Logging in.")
	case !c.record.Valid(c.now()):
		c.logger.InfoContext(ctx, "Authentication cookie expired. Logging in.",
			slog.Time("expired_at", *c.record.ExpiresAt))
	default:
		return nil
	}
	return c.Login(ctx)
}

// loadState reads the cached session. Any failure is a cache miss.
func (c *Client) loadState(ctx context.Context) {
	c.record = nil
	c.cookies = nil

	rec, err := c.store.Load(ctx, c.configID)
	if err != nil {
		c.logger.WarnContext(ctx, "Error loading session state", slog.Any("error", err))
		return
	}
	cookies, err := decodeCookies(rec.Handle)
	if err != nil {
		c.logger.WarnContext(ctx, "Error loading session state", slog.Any("error", err))
		return
	}

	c.record = rec
	c.cookies = cookies
	c.logger.InfoContext(ctx, "Loaded session state successfully")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Tenant   string `json:"tenant"`
}

// Login authenticates, captures the session cookie and persists it.
func (c *Client) Login(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(loginRequest{
		Username: c.cfg.Username,
		Password: c.cfg.Password,
		Tenant:   c.cfg.Tenant,
	})
	if err != nil {
		return fmt.Errorf("%w: encoding login request: %w", domain.ErrAuthentication, err)
	}

	url := c.cfg.BaseURL() + LoginPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: login error: %w", domain.ErrAuthentication, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Login error", slog.Any("error", err))
		return fmt.Errorf("%w: login error: %w", domain.ErrAuthentication, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	c.logger.InfoContext(ctx, "Login: Authentication credentials sent.")

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.ErrorContext(ctx, "Login failed: unauthorized request")
		return fmt.Errorf("%w: unauthorized request: %s", domain.ErrAuthentication, bytes.TrimSpace(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.ErrorContext(ctx, "Login failed: bad response code", slog.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: bad response code: %d - %s", domain.ErrAuthentication, resp.StatusCode, bytes.TrimSpace(body))
	}

	cookies := resp.Cookies()
	sid := findCookie(cookies, SessionCookieName)
	if sid == nil {
		c.logger.ErrorContext(ctx, "Login failed: auth cookie not found")
		return fmt.Errorf("%w: auth cookie not found", domain.ErrAuthentication)
	}

	handle, err := encodeCookies(cookies)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}
	record := &domain.SessionRecord{Handle: handle, ExpiresAt: cookieExpiry(sid, c.now())}

	if err := c.store.Save(ctx, c.configID, record); err != nil {
		c.logger.ErrorContext(ctx, "Error saving session state", slog.Any("error", err))
		return fmt.Errorf("saving session state: %w", err)
	}
	c.logger.InfoContext(ctx, "Saved session state successfully")

	c.record = record
	c.cookies = cookies
	c.loaded = true

	if record.ExpiresAt != nil {
		c.logger.InfoContext(ctx, "Login success", slog.Time("expires", *record.ExpiresAt))
	} else {
		c.logger.WarnContext(ctx, "Login success but session cookie carries no expiration")
	}
	return nil
}

// Do sends an authenticated request with in as the JSON body and decodes a
// successful response into out. Either may be nil.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	if err := c.EnsureValid(ctx); err != nil {
		return err
	}

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encoding request body for %s: %w", path, err)
		}
	}

	for attempt := 0; ; attempt++ {
		status, body, err := c.send(ctx, method, path, payload)
		if err != nil {
			c.logger.ErrorContext(ctx, "Error invoking endpoint", slog.String("path", path), slog.Any("error", err))
			return fmt.Errorf("%w: %s %s: %w", domain.ErrTransport, method, path, err)
		}

		if status >= 200 && status <= 299 {
			if out == nil || len(bytes.TrimSpace(body)) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decoding response from %s: %w", path, err)
			}
			return nil
		}

		if status == http.StatusUnauthorized && attempt < maxAuthRetries {
			c.logger.WarnContext(ctx, "Unauthorized request - trying to login", slog.String("path", path))
			if err := c.Login(ctx); err != nil {
				return err
			}
			c.logger.InfoContext(ctx, "Login success: retrying REST request", slog.String("path", path))
			continue
		}

		c.logger.ErrorContext(ctx, "Request error", slog.String("path", path), slog.Int("status", status))
		return &domain.RequestError{Method: method, Path: path, StatusCode: status, Body: body}
	}
}

// Invoke is Do returning the decoded JSON body as generic values.
func (c *Client) Invoke(ctx context.Context, method, path string, in any) (any, error) {
	var out any
	if err := c.Do(ctx, method, path, in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// send performs a single request with the current session cookies attached.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	url := c.cfg.BaseURL() + path

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range c.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	c.logger.DebugContext(ctx, "REST request sent", slog.String("method", method), slog.String("url", url), slog.Int("status", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// IsUnauthorized reports whether err is a request rejected with 401.
func IsUnauthorized(err error) bool {
	var reqErr *domain.RequestError
	return errors.As(err, &reqErr) && reqErr.IsUnauthorized()
}
