// Package protocol implements the two line-delimited JSON wire envelopes the
// engine speaks: the host command channel and the broker-bridge RPC channel.
package protocol

import (
	"encoding/json"
	"fmt"
)

// MaxFrameBytes bounds a single input line before it is rejected with
// PAYLOAD_TOO_LARGE.
const MaxFrameBytes = 1 << 20 // 1 MiB

// Status values for a Response envelope.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusWarning = "warning"
)

// Closed set of error codes the engine may return on the command channel.
const (
	CodeInvalidCommand       = "INVALID_COMMAND"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeUnknownCommand       = "UNKNOWN_COMMAND"
	CodeHandlerError         = "HANDLER_ERROR"
	CodeBridgeStartupFailed  = "BRIDGE_STARTUP_FAILED"
	CodeBridgeTimeout        = "BRIDGE_TIMEOUT"
	CodeBridgeDesync         = "BRIDGE_DESYNC"
	CodeTRAuthError          = "TR_AUTH_ERROR"
	CodeTR2FAInvalidState    = "TR_2FA_INVALID_STATE"
	CodeTR2FAInvalid         = "TR_2FA_INVALID"
	CodeTRRateLimited        = "TR_RATE_LIMITED"
	CodeDataFetchFailed      = "DATA_FETCH_FAILED"
	CodeTickerInvalid        = "TICKER_INVALID"
	CodeSecurityDelisted     = "SECURITY_DELISTED"
	CodeAdapterNetwork       = "ADAPTER_NETWORK"
	CodeAdapterFormat        = "ADAPTER_FORMAT"
	CodeManualUploadRequired = "MANUAL_UPLOAD_REQUIRED"
	CodeResolveUnresolved    = "RESOLVE_UNRESOLVED"
	CodePipelinePartial      = "PIPELINE_PARTIAL"
)

// Command is a decoded request from the host shell.
type Command struct {
	Name    string                 `json:"command"`
	ID      any                    `json:"id"`
	Payload map[string]interface{} `json:"payload"`
}

// ErrorDetail is the `error` member of a Response.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Response is the decoded/encoded reply to a Command, echoing its ID.
type Response struct {
	Status  string                 `json:"status"`
	Command string                 `json:"command,omitempty"`
	ID      any                    `json:"id"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *ErrorDetail           `json:"error,omitempty"`
}

// DecodeError wraps a malformed-frame condition with the code the transport
// must report back to the caller; the transport stays open regardless.
type DecodeError struct {
	Code    string
	Message string
}

func (e *DecodeError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Blank reports whether line (after trim) is empty — the transport silently
// ignores blank lines rather than treating them as malformed frames.
func Blank(line []byte) bool {
	for _, b := range line {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return false
		}
	}
	return true
}

// DecodeCommand parses one line of the host command channel. The caller is
// responsible for the MaxFrameBytes check before invoking this (it needs the
// raw byte count, which may differ from len(line) if already trimmed).
func DecodeCommand(line []byte) (Command, error) {
	var raw struct {
		Command string                 `json:"command"`
		ID      any                    `json:"id"`
		Payload map[string]interface{} `json:"payload"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return Command{}, &DecodeError{Code: CodeInvalidCommand, Message: "malformed JSON: " + err.Error()}
	}
	if raw.Command == "" {
		return Command{}, &DecodeError{Code: CodeInvalidCommand, Message: "command must be a non-empty string"}
	}
	if len(raw.Command) > 64 {
		return Command{}, &DecodeError{Code: CodeInvalidCommand, Message: "command name exceeds 64 characters"}
	}
	if raw.ID == nil {
		return Command{}, &DecodeError{Code: CodeInvalidCommand, Message: "id is required"}
	}
	if raw.Payload == nil {
		raw.Payload = map[string]interface{}{}
	}
	return Command{Name: raw.Command, ID: raw.ID, Payload: raw.Payload}, nil
}

// EncodeResponse renders r as a single JSON line terminated by exactly one
// trailing newline, never embedding newlines inside the JSON itself.
func EncodeResponse(r Response) ([]byte, error) {
	if (r.Data == nil) == (r.Error == nil) {
		return nil, fmt.Errorf("protocol: response must set exactly one of data/error")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode response: %w", err)
	}
	return append(body, '\n'), nil
}

// Success builds a success/warning response carrying data.
func Success(cmd Command, data map[string]interface{}, warning bool) Response {
	status := StatusSuccess
	if warning {
		status = StatusWarning
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return Response{Status: status, Command: cmd.Name, ID: cmd.ID, Data: data}
}

// Fail builds an error response for the given command id.
func Fail(cmd Command, code, message string) Response {
	return Response{
		Status:  StatusError,
		Command: cmd.Name,
		ID:      cmd.ID,
		Error:   &ErrorDetail{Code: code, Message: message},
	}
}

// FailRaw builds an error response when the command could not be decoded at
// all, so no Command value is available to echo the name from.
func FailRaw(id any, name string, code, message string) Response {
	return Response{Status: StatusError, Command: name, ID: id, Error: &ErrorDetail{Code: code, Message: message}}
}
