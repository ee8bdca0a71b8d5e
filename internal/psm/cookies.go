package psm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SessionCookieName is the cookie the appliance issues on login.
const SessionCookieName = "sid"

// storedCookie is the serialized form of a cookie in a session handle.
type storedCookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Expires  int64  `json:"expires,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HttpOnly bool   `json:"http_only,omitempty"`
}

// encodeCookies serializes the cookies replayed on every authenticated request.
func encodeCookies(cookies []*http.Cookie) ([]byte, error) {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		sc := storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if !c.Expires.IsZero() {
			sc.Expires = c.Expires.Unix()
		}
		stored = append(stored, sc)
	}
	return json.Marshal(stored)
}

// decodeCookies restores the cookies from a session handle.
func decodeCookies(handle []byte) ([]*http.Cookie, error) {
	if len(handle) == 0 {
		return nil, nil
	}
	var stored []storedCookie
	if err := json.Unmarshal(handle, &stored); err != nil {
		return nil, fmt.Errorf("decoding session handle: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		c := &http.Cookie{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     sc.Path,
			Domain:   sc.Domain,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
		}
		if sc.Expires != 0 {
			c.Expires = time.Unix(sc.Expires, 0)
		}
		cookies = append(cookies, c)
	}
	return cookies, nil
}

// findCookie returns the named cookie, or nil.
func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// cookieExpiry returns when the cookie expires, preferring Expires over Max-Age.
// A session cookie with neither yields nil.
func cookieExpiry(c *http.Cookie, now time.Time) *time.Time {
	switch {
	case !c.Expires.IsZero():
		t := c.Expires
		return &t
	case c.MaxAge > 0:
		t := now.Add(time.Duration(c.MaxAge) * time.Second)
		return &t
	default:
		return nil
	}
}
