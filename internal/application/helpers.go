package application

import (
	"context"

	"github.com/skeptomenos/portfolio-prism-engine/internal/auth"
	"github.com/skeptomenos/portfolio-prism-engine/internal/broker"
	"github.com/skeptomenos/portfolio-prism-engine/internal/dispatch"
	"github.com/skeptomenos/portfolio-prism-engine/internal/protocol"
	"github.com/skeptomenos/portfolio-prism-engine/internal/worker"
)

const defaultPortfolio = "default"

func stringParam(cmd protocol.Command, key, fallback string) string {
	if v, ok := cmd.Payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func requiredString(cmd protocol.Command, key string) (string, bool) {
	v, ok := cmd.Payload[key].(string)
	return v, ok && v != ""
}

func boolParam(cmd protocol.Command, key string) bool {
	v, _ := cmd.Payload[key].(bool)
	return v
}

// runBlocking submits fn to pool and waits for it under ctx, collapsing the
// submit/wait pair every bridge or HTTP-bound handler needs (spec.md §4.9:
// no blocking call runs directly on the command dispatch path).
func runBlocking[T any](ctx context.Context, pool *worker.Pool, fn func(context.Context) (T, error)) (T, error) {
	fut, err := worker.Submit(pool, fn)
	if err != nil {
		var zero T
		return zero, err
	}
	return fut.Wait(ctx)
}

// toDispatchError preserves a coded auth error's protocol error code, and
// classifies any raw bridge error (for handlers like sync_portfolio that
// call the bridge directly rather than through the auth state machine) into
// its BRIDGE_TIMEOUT/BRIDGE_DESYNC/bridge-reported code. Anything else is
// returned unchanged so dispatch.Table.invoke downgrades it to
// HANDLER_ERROR without leaking internals.
func toDispatchError(err error) error {
	if ce, ok := err.(*auth.CodedError); ok {
		return dispatch.Fail(ce.Code, ce.Message)
	}
	if code, message, ok := broker.Classify(err); ok {
		return dispatch.Fail(code, message)
	}
	return err
}

