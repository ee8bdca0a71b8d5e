package operation

import (
	"context"
	"log/slog"
	"slices"

	"github.com/bcnelson/psm-connector/internal/ruleset"
	"github.com/bcnelson/psm-connector/internal/validation"
)

const (
	paramHostIP = "host_source_ip"
	paramIOCIP  = "ioc_ip"
)

// hostParam returns the validated host_source_ip parameter.
func hostParam(p Params) (string, error) {
	host, err := p.RequireString(paramHostIP)
	if err != nil {
		return "", err
	}
	if err := validation.ValidateHostAddress(host); err != nil {
		return "", validation.NewValidationError(paramHostIP, host, err.Error())
	}
	return host, nil
}

func isolateHost(ctx context.Context, env *Env, p Params) (any, error) {
	host, err := hostParam(p)
	if err != nil {
		return nil, err
	}
	env.Logger.InfoContext(ctx, "Isolating host", slog.String("host", host))
	return env.Policies.IsolateHost(ctx, host)
}

func unisolateHost(ctx context.Context, env *Env, p Params) (any, error) {
	host, err := hostParam(p)
	if err != nil {
		return nil, err
	}
	env.Logger.InfoContext(ctx, "Removing host isolation", slog.String("host", host))
	return env.Policies.UnisolateHost(ctx, host)
}

func iocBlockAddIP(ctx context.Context, env *Env, p Params) (any, error) {
	given := p.List(paramIOCIP)
	addrs := slices.DeleteFunc(slices.Clone(given), func(a string) bool { return a == ruleset.SentinelAddress })
	if len(given) > 0 && len(addrs) == 0 {
		return nil, validation.NewValidationError(paramIOCIP, ruleset.SentinelAddress, "is reserved for the IOC rules and cannot be blocked")
	}
	if errs := validation.ValidateAddressList(paramIOCIP, addrs); errs.HasErrors() {
		return nil, errs
	}
	env.Logger.InfoContext(ctx, "Blocking IOC addresses", slog.Int("count", len(addrs)))
	return env.Policies.BlockIOC(ctx, addrs)
}

func iocDeleteList(ctx context.Context, env *Env, _ Params) (any, error) {
	env.Logger.InfoContext(ctx, "Deleting IOC block list")
	return env.Policies.DeleteIOC(ctx)
}
