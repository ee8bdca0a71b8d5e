package ruleset

import (
	"fmt"

	"github.com/bcnelson/psm-connector/internal/domain"
)

// AddIsolation returns rules with the isolation pair for host at the head.
// An existing pair for host is replaced, so isolating twice is a no-op.
func AddIsolation(rules []domain.Rule, host string) ([]domain.Rule, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: host address is required", domain.ErrConfiguration)
	}
	i, err := findPair(rules, func(r domain.Rule) bool { return IsIsolationRule(r, host) })
	if err != nil {
		return nil, err
	}
	return prependPair(withoutPair(rules, i), []string{host}), nil
}

// RemoveIsolation returns rules without the isolation pair for host.
func RemoveIsolation(rules []domain.Rule, host string) ([]domain.Rule, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: host address is required", domain.ErrConfiguration)
	}
	i, err := findPair(rules, func(r domain.Rule) bool { return IsIsolationRule(r, host) })
	if err != nil {
		return nil, err
	}
	if i < 0 {
		return nil, fmt.Errorf("%w for host %s", domain.ErrNoMatchingRules, host)
	}
	return withoutPair(rules, i), nil
}
