package operation

import "context"

// HealthMessage is returned by a successful health check.
const HealthMessage = "Connector is Available"

func healthCheck(ctx context.Context, env *Env, _ Params) (any, error) {
	if _, err := env.Client.ListWorkloads(ctx); err != nil {
		return nil, err
	}
	env.Logger.InfoContext(ctx, "Health check succeeded")
	return HealthMessage, nil
}

func getWorkloads(ctx context.Context, env *Env, _ Params) (any, error) {
	return env.Client.ListWorkloads(ctx)
}

func getDistributedServiceCards(ctx context.Context, env *Env, _ Params) (any, error) {
	return env.Client.ListDistributedServiceCards(ctx)
}

func getNetworks(ctx context.Context, env *Env, _ Params) (any, error) {
	return env.Client.ListNetworks(ctx)
}

func getNetworkSecurityPolicies(ctx context.Context, env *Env, _ Params) (any, error) {
	return env.Client.ListSecurityPoliciesRaw(ctx)
}

func getAlerts(ctx context.Context, env *Env, _ Params) (any, error) {
	return env.Client.ListAlerts(ctx)
}
