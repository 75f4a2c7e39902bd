package protocol

import (
	"encoding/json"
	"fmt"
)

// BridgeRequest is sent to the broker child process over its stdin.
type BridgeRequest struct {
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
	ID     string                 `json:"id"`
}

// BridgeResponse is read back from the broker child's stdout.
type BridgeResponse struct {
	Result map[string]interface{} `json:"result"`
	Error  *ErrorDetail           `json:"error"`
	ID     string                 `json:"id"`
}

// BridgeReady is the handshake line a freshly spawned broker child must emit
// before the bridge considers it usable.
type BridgeReady struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// EncodeBridgeRequest renders r as a single newline-terminated JSON line.
func EncodeBridgeRequest(r BridgeRequest) ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode bridge request: %w", err)
	}
	return append(body, '\n'), nil
}

// DecodeBridgeResponse parses one line of the broker-bridge channel.
func DecodeBridgeResponse(line []byte) (BridgeResponse, error) {
	var resp BridgeResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return BridgeResponse{}, &DecodeError{Code: CodeBridgeDesync, Message: "malformed bridge frame: " + err.Error()}
	}
	if resp.ID == "" {
		return BridgeResponse{}, &DecodeError{Code: CodeBridgeDesync, Message: "bridge response missing id"}
	}
	return resp, nil
}

// DecodeBridgeReady parses the child's startup handshake line.
func DecodeBridgeReady(line []byte) (BridgeReady, error) {
	var ready BridgeReady
	if err := json.Unmarshal(line, &ready); err != nil {
		return BridgeReady{}, fmt.Errorf("protocol: malformed ready handshake: %w", err)
	}
	if ready.Status != "ready" {
		return BridgeReady{}, fmt.Errorf("protocol: unexpected handshake status %q", ready.Status)
	}
	return ready, nil
}
