package operation

import "context"

// debug operations never fail on session store errors; only the login done
// by debug_expire_cookie can.

func debugExpireCookie(ctx context.Context, env *Env, _ Params) (any, error) {
	if err := env.Client.ExpireCookie(ctx); err != nil {
		return nil, err
	}
	return map[string]string{"status": "session cookie expired"}, nil
}

func debugResetSessionState(ctx context.Context, env *Env, _ Params) (any, error) {
	env.Client.ResetState(ctx)
	return map[string]string{"status": "session state reset"}, nil
}

func debugRemoveSessionState(ctx context.Context, env *Env, _ Params) (any, error) {
	env.Client.RemoveState(ctx)
	return map[string]string{"status": "session state removed"}, nil
}
