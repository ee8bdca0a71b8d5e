package psm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bcnelson/psm-connector/internal/domain"
)

// Appliance REST paths.
const (
	LoginPath                   = "/v1/login"
	WorkloadsPath               = "/configs/workload/v1/workloads"
	DistributedServiceCardsPath = "/configs/cluster/v1/distributedservicecards"
	NetworksPath                = "/configs/network/v1/networks"
	SecurityPoliciesPath        = "/configs/security/v1/networksecuritypolicies"
	AlertsPath                  = "/configs/monitoring/v1/alerts"
)

// SecurityPolicyPath is the tenant-scoped path of a single security policy.
func SecurityPolicyPath(tenant, name string) string {
	return fmt.Sprintf("/configs/security/v1/tenant/%s/networksecuritypolicies/%s", url.PathEscape(tenant), url.PathEscape(name))
}

// FlowExportPolicyPath is the collection path, or the resource path when name is set.
func FlowExportPolicyPath(tenant, name string) string {
	p := fmt.Sprintf("/configs/monitoring/v1/tenant/%s/flowExportPolicy", url.PathEscape(tenant))
	if name != "" {
		p += "/" + url.PathEscape(name)
	}
	return p
}

// MirrorSessionPath is the collection path, or the resource path when name is set.
func MirrorSessionPath(tenant, name string) string {
	p := fmt.Sprintf("/configs/monitoring/v1/tenant/%s/MirrorSession", url.PathEscape(tenant))
	if name != "" {
		p += "/" + url.PathEscape(name)
	}
	return p
}

// ListWorkloads returns the workload inventory.
func (c *Client) ListWorkloads(ctx context.Context) (any, error) {
	return c.Invoke(ctx, http.MethodGet, WorkloadsPath, nil)
}

// ListDistributedServiceCards returns the DSC inventory.
func (c *Client) ListDistributedServiceCards(ctx context.Context) (any, error) {
	return c.Invoke(ctx, http.MethodGet, DistributedServiceCardsPath, nil)
}

// ListNetworks returns the configured networks.
func (c *Client) ListNetworks(ctx context.Context) (any, error) {
	return c.Invoke(ctx, http.MethodGet, NetworksPath, nil)
}

// ListAlerts returns the monitoring alerts.
func (c *Client) ListAlerts(ctx context.Context) (any, error) {
	return c.Invoke(ctx, http.MethodGet, AlertsPath, nil)
}

// ListSecurityPoliciesRaw returns the policy list exactly as the appliance sent it.
func (c *Client) ListSecurityPoliciesRaw(ctx context.Context) (any, error) {
	return c.Invoke(ctx, http.MethodGet, SecurityPoliciesPath, nil)
}

// ListSecurityPolicies returns the network security policies.
func (c *Client) ListSecurityPolicies(ctx context.Context) (*domain.NetworkSecurityPolicyList, error) {
	var list domain.NetworkSecurityPolicyList
	if err := c.Do(ctx, http.MethodGet, SecurityPoliciesPath, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetSecurityPolicy fetches one policy in the client's tenant.
func (c *Client) GetSecurityPolicy(ctx context.Context, name string) (*domain.NetworkSecurityPolicy, error) {
	var policy domain.NetworkSecurityPolicy
	if err := c.Do(ctx, http.MethodGet, SecurityPolicyPath(c.Tenant(), name), nil, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

// policyUpdate is the body of a whole-policy replacement.
type policyUpdate struct {
	Kind       string                           `json:"kind"`
	APIVersion string                           `json:"api-version"`
	Spec       domain.NetworkSecurityPolicySpec `json:"spec"`
}

// PutSecurityPolicy replaces the policy's entire rule list.
func (c *Client) PutSecurityPolicy(ctx context.Context, name string, rules []domain.Rule) (any, error) {
	if rules == nil {
		rules = []domain.Rule{}
	}
	body := policyUpdate{
		Kind:       "NetworkSecurityPolicy",
		APIVersion: "v1",
		Spec: domain.NetworkSecurityPolicySpec{
			AttachTenant: true,
			Rules:        rules,
		},
	}
	return c.Invoke(ctx, http.MethodPut, SecurityPolicyPath(c.Tenant(), name), body)
}

// CreateMirrorSession creates an ERSPAN mirror session.
func (c *Client) CreateMirrorSession(ctx context.Context, session *domain.MirrorSession) (any, error) {
	return c.Invoke(ctx, http.MethodPost, MirrorSessionPath(c.Tenant(), ""), session)
}

// DeleteMirrorSession deletes a mirror session by name.
func (c *Client) DeleteMirrorSession(ctx context.Context, name string) (any, error) {
	return c.Invoke(ctx, http.MethodDelete, MirrorSessionPath(c.Tenant(), name), nil)
}

// CreateFlowExportPolicy creates an IPFIX flow export policy.
func (c *Client) CreateFlowExportPolicy(ctx context.Context, policy *domain.FlowExportPolicy) (any, error) {
	return c.Invoke(ctx, http.MethodPost, FlowExportPolicyPath(c.Tenant(), ""), policy)
}

// DeleteFlowExportPolicy deletes a flow export policy by name.
func (c *Client) DeleteFlowExportPolicy(ctx context.Context, name string) (any, error) {
	return c.Invoke(ctx, http.MethodDelete, FlowExportPolicyPath(c.Tenant(), name), nil)
}
