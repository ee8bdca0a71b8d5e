// Package operation implements the connector's operations on top of the
// session manager and the policy service. Each operation takes a decoded
// parameter object and returns the decoded JSON body of its last REST call.
package operation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/psm"
	"github.com/bcnelson/psm-connector/internal/service"
)

// Env carries what every operation needs.
type Env struct {
	Client   *psm.Client
	Policies *service.PolicyService
	Logger   *slog.Logger
}

// NewEnv builds an Env around client.
func NewEnv(client *psm.Client, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{
		Client:   client,
		Policies: service.NewPolicyService(client, logger),
		Logger:   logger,
	}
}

// Handler runs one operation.
type Handler func(ctx context.Context, env *Env, params Params) (any, error)

var registry = map[string]Handler{
	"health_check":                  healthCheck,
	"get_workloads":                 getWorkloads,
	"get_distributedservicecards":   getDistributedServiceCards,
	"get_networks":                  getNetworks,
	"get_network_security_policies": getNetworkSecurityPolicies,
	"get_alerts":                    getAlerts,
	"isolate_host":                  isolateHost,
	"unisolate_host":                unisolateHost,
	"ioc_block_add_ip":              iocBlockAddIP,
	"ioc_delete_list":               iocDeleteList,
	"enable_mirror_export":          enableMirrorExport,
	"delete_mirror_export":          deleteMirrorExport,
	"enable_ipfix_export":           enableIPFIXExport,
	"delete_ipfix_export":           deleteIPFIXExport,
	"debug_expire_cookie":           debugExpireCookie,
	"debug_reset_session_state":     debugResetSessionState,
	"debug_remove_session_state":    debugRemoveSessionState,
}

// Lookup returns the handler registered under name.
func Lookup(name string) (Handler, bool) {
	h, ok := registry[name]
	return h, ok
}

// Names returns the registered operation names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run executes the named operation.
func Run(ctx context.Context, env *Env, name string, params Params) (any, error) {
	h, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported operation %q", domain.ErrConfiguration, name)
	}
	if params == nil {
		params = Params{}
	}

	env.Logger.DebugContext(ctx, "Running operation", slog.String("operation", name))
	result, err := h(ctx, env, params)
	if err != nil {
		env.Logger.ErrorContext(ctx, "Operation failed", slog.String("operation", name), slog.Any("error", err))
		return nil, err
	}
	return result, nil
}
