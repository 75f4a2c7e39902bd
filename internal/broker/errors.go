package broker

import "github.com/skeptomenos/portfolio-prism-engine/internal/protocol"

// Classify maps a bridge-originated error to one of the protocol's closed
// error codes, so every caller that talks to the bridge — not just the auth
// state machine — can surface BRIDGE_TIMEOUT/BRIDGE_DESYNC/
// BRIDGE_STARTUP_FAILED and bridge-reported RPC codes verbatim instead of
// letting the generic dispatch path downgrade them to HANDLER_ERROR
// (spec.md §7: bridge desync/timeout always surfaces to the client). ok is
// false when err does not match one of these recognized bridge error shapes.
func Classify(err error) (code, message string, ok bool) {
	switch err {
	case ErrBridgeTimeout:
		return protocol.CodeBridgeTimeout, "broker request timed out", true
	case ErrBridgeDesync:
		return protocol.CodeBridgeDesync, "broker bridge desynced and was restarted", true
	}
	if rpcErr, ok := err.(*RPCError); ok {
		return rpcErr.Code, rpcErr.Message, true
	}
	if _, ok := err.(*protocol.DecodeError); ok {
		return protocol.CodeBridgeStartupFailed, "broker child failed to start", true
	}
	return "", "", false
}
