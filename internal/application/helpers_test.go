package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skeptomenos/portfolio-prism-engine/internal/auth"
	"github.com/skeptomenos/portfolio-prism-engine/internal/broker"
	"github.com/skeptomenos/portfolio-prism-engine/internal/dispatch"
	"github.com/skeptomenos/portfolio-prism-engine/internal/protocol"
	"github.com/skeptomenos/portfolio-prism-engine/internal/worker"
)

func TestStringParam_FallsBackWhenMissingOrEmpty(t *testing.T) {
	cmd := protocol.Command{Payload: map[string]interface{}{"portfolio": ""}}
	require.Equal(t, "default", stringParam(cmd, "portfolio", "default"))

	cmd = protocol.Command{Payload: map[string]interface{}{"portfolio": "isa"}}
	require.Equal(t, "isa", stringParam(cmd, "portfolio", "default"))

	cmd = protocol.Command{Payload: map[string]interface{}{}}
	require.Equal(t, "default", stringParam(cmd, "portfolio", "default"))
}

func TestRequiredString(t *testing.T) {
	cmd := protocol.Command{Payload: map[string]interface{}{"isin": "IE00B4L5Y983"}}
	v, ok := requiredString(cmd, "isin")
	require.True(t, ok)
	require.Equal(t, "IE00B4L5Y983", v)

	_, ok = requiredString(cmd, "missing")
	require.False(t, ok)

	cmd = protocol.Command{Payload: map[string]interface{}{"isin": ""}}
	_, ok = requiredString(cmd, "isin")
	require.False(t, ok)
}

func TestBoolParam(t *testing.T) {
	cmd := protocol.Command{Payload: map[string]interface{}{"enabled": true}}
	require.True(t, boolParam(cmd, "enabled"))

	cmd = protocol.Command{Payload: map[string]interface{}{}}
	require.False(t, boolParam(cmd, "enabled"))

	cmd = protocol.Command{Payload: map[string]interface{}{"enabled": "true"}}
	require.False(t, boolParam(cmd, "enabled"))
}

func TestRunBlocking_ReturnsResult(t *testing.T) {
	pool := worker.New(1, 4)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	got, err := runBlocking(context.Background(), pool, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestRunBlocking_PropagatesTaskError(t *testing.T) {
	pool := worker.New(1, 4)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	boom := errors.New("boom")
	_, err := runBlocking(context.Background(), pool, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestToDispatchError_PreservesAuthCodedError(t *testing.T) {
	err := toDispatchError(&auth.CodedError{Code: protocol.CodeTRAuthError, Message: "not logged in"})

	var ce *dispatch.CodedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, protocol.CodeTRAuthError, ce.Code)
	require.Equal(t, "not logged in", ce.Message)
}

func TestToDispatchError_PassesThroughPlainError(t *testing.T) {
	plain := errors.New("transport fell over")
	require.Equal(t, plain, toDispatchError(plain))
}

func TestToDispatchError_ClassifiesRawBridgeTimeout(t *testing.T) {
	// sync_portfolio calls the bridge directly rather than through the auth
	// state machine, so a raw broker error must still classify correctly.
	err := toDispatchError(broker.ErrBridgeTimeout)

	var ce *dispatch.CodedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, protocol.CodeBridgeTimeout, ce.Code)
}
