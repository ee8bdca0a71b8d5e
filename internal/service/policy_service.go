package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/ruleset"
)

// PolicyClient defines the appliance calls needed to edit a security policy.
type PolicyClient interface {
	ListSecurityPolicies(ctx context.Context) (*domain.NetworkSecurityPolicyList, error)
	GetSecurityPolicy(ctx context.Context, name string) (*domain.NetworkSecurityPolicy, error)
	PutSecurityPolicy(ctx context.Context, name string, rules []domain.Rule) (any, error)
}

// PolicyService applies rule edits to the appliance's security policy with a
// read-modify-write of the whole rule list.
type PolicyService struct {
	client PolicyClient
	logger *slog.Logger
}

// NewPolicyService creates a new PolicyService. A nil logger uses slog.Default().
func NewPolicyService(client PolicyClient, logger *slog.Logger) *PolicyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyService{client: client, logger: logger}
}

// CurrentPolicyName returns the name of the first security policy.
func (s *PolicyService) CurrentPolicyName(ctx context.Context) (string, error) {
	list, err := s.client.ListSecurityPolicies(ctx)
	if err != nil {
		return "", err
	}
	if len(list.Items) == 0 {
		return "", fmt.Errorf("%w: no network security policy found", domain.ErrRuleState)
	}
	name := list.Items[0].Meta.Name
	if name == "" {
		return "", fmt.Errorf("%w: network security policy has no name", domain.ErrRuleState)
	}
	s.logger.InfoContext(ctx, "Found network security policy", slog.String("policy", name))
	return name, nil
}

// IsolateHost blocks all traffic to and from host.
func (s *PolicyService) IsolateHost(ctx context.Context, host string) (any, error) {
	return s.edit(ctx, "isolate host", func(rules []domain.Rule) ([]domain.Rule, error) {
		return ruleset.AddIsolation(rules, host)
	})
}

// UnisolateHost removes the isolation rules for host.
func (s *PolicyService) UnisolateHost(ctx context.Context, host string) (any, error) {
	return s.edit(ctx, "unisolate host", func(rules []domain.Rule) ([]domain.Rule, error) {
		return ruleset.RemoveIsolation(rules, host)
	})
}

// BlockIOC adds addrs to the IOC block rules.
func (s *PolicyService) BlockIOC(ctx context.Context, addrs []string) (any, error) {
	return s.edit(ctx, "block IOC addresses", func(rules []domain.Rule) ([]domain.Rule, error) {
		return ruleset.AddIOC(rules, addrs)
	})
}

// DeleteIOC removes the IOC block rules.
func (s *PolicyService) DeleteIOC(ctx context.Context) (any, error) {
	return s.edit(ctx, "delete IOC list", ruleset.RemoveIOC)
}

// edit fetches the current policy, applies fn and writes the result back.
// Nothing is written when fn fails.
func (s *PolicyService) edit(ctx context.Context, action string, fn func([]domain.Rule) ([]domain.Rule, error)) (any, error) {
	name, err := s.CurrentPolicyName(ctx)
	if err != nil {
		return nil, err
	}

	policy, err := s.client.GetSecurityPolicy(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetching policy %s: %w", name, err)
	}

	rules, err := fn(policy.Spec.Rules)
	if err != nil {
		s.logger.ErrorContext(ctx, "Rule update aborted", slog.String("action", action), slog.String("policy", name), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	s.logger.InfoContext(ctx, "Updating network security policy",
		slog.String("action", action),
		slog.String("policy", name),
		slog.Int("rules_before", len(policy.Spec.Rules)),
		slog.Int("rules_after", len(rules)))

	return s.client.PutSecurityPolicy(ctx, name, rules)
}
