package application

import (
	"context"

	"github.com/skeptomenos/portfolio-prism-engine/internal/dispatch"
	"github.com/skeptomenos/portfolio-prism-engine/internal/protocol"
)

func (d *Dependencies) handleGetHealth(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	return map[string]interface{}{
		"version":         Version,
		"uptime_seconds":  uptimeSeconds(d.startedAt),
		"memory_usage_mb": memoryUsageMB(),
	}, nil
}

func (d *Dependencies) handleAuthStatus(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	status := d.Registry.Auth().Status(ctx)
	return map[string]interface{}{
		"state":           string(status.State),
		"has_credentials": status.HasCredentials,
		"masked_phone":    status.MaskedPhone,
	}, nil
}

func (d *Dependencies) handleLogin(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	phone, okPhone := requiredString(cmd, "phone")
	pin, okPin := requiredString(cmd, "pin")
	if !okPhone || !okPin {
		return nil, dispatch.Fail(protocol.CodeInvalidCommand, "phone and pin are required")
	}
	remember := boolParam(cmd, "remember")

	_, err := runBlocking(ctx, d.Registry.Pool(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.Registry.Auth().Login(ctx, phone, pin, remember)
	})
	if err != nil {
		return nil, toDispatchError(err)
	}

	status := d.Registry.Auth().Status(ctx)
	return map[string]interface{}{"state": string(status.State)}, nil
}

func (d *Dependencies) handleSubmit2FA(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	code, ok := requiredString(cmd, "code")
	if !ok {
		return nil, dispatch.Fail(protocol.CodeInvalidCommand, "code is required")
	}

	_, err := runBlocking(ctx, d.Registry.Pool(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.Registry.Auth().SubmitTwoFactor(ctx, code)
	})
	if err != nil {
		return nil, toDispatchError(err)
	}

	status := d.Registry.Auth().Status(ctx)
	return map[string]interface{}{"state": string(status.State)}, nil
}

func (d *Dependencies) handleTryRestoreSession(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	restored, err := runBlocking(ctx, d.Registry.Pool(), func(ctx context.Context) (bool, error) {
		return d.Registry.Auth().TryRestoreSession(ctx)
	})
	if err != nil {
		return nil, toDispatchError(err)
	}

	status := d.Registry.Auth().Status(ctx)
	return map[string]interface{}{"restored": restored, "state": string(status.State)}, nil
}

func (d *Dependencies) handleLogout(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	_, err := runBlocking(ctx, d.Registry.Pool(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.Registry.Auth().Logout(ctx, d.Config)
	})
	if err != nil {
		return nil, toDispatchError(err)
	}
	return map[string]interface{}{"state": string(d.Registry.Auth().Status(ctx).State)}, nil
}

func (d *Dependencies) handleGetStoredCredentials(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	status := d.Registry.Auth().Status(ctx)
	return map[string]interface{}{
		"has_credentials": status.HasCredentials,
		"masked_phone":    status.MaskedPhone,
	}, nil
}
