package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors used throughout the application.
var (
	ErrNotFound        = errors.New("not found")
	ErrConfiguration   = errors.New("configuration error")
	ErrAuthentication  = errors.New("authentication failed")
	ErrTransport       = errors.New("transport error")
	ErrRequest         = errors.New("request error")
	ErrRuleState       = errors.New("rule state error")
	ErrNoMatchingRules = fmt.Errorf("%w: no matching rules", ErrRuleState)
)

// RequestError is returned when the appliance answers with a non-success status.
type RequestError struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body,omitempty"`
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("request error: %s %s: %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("request error: %s %s: %d - %s", e.Method, e.Path, e.StatusCode, body)
}

// Is lets errors.Is(err, ErrRequest) match any RequestError.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequest
}

// IsUnauthorized reports whether the appliance rejected the session.
func (e *RequestError) IsUnauthorized() bool {
	return e.StatusCode == 401
}
