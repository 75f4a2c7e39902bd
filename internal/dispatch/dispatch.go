// Package dispatch resolves a decoded command to its handler through a
// static table and recovers from any handler panic into a generic error
// response (spec.md §4.3). Envelope validation happens before dispatch, in
// protocol.DecodeCommand as called by each transport.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/skeptomenos/portfolio-prism-engine/internal/protocol"
)

// Handler processes one decoded command and returns the data payload for a
// success response, or an error to be translated into an error response.
type Handler func(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error)

// CodedError lets a handler choose the response error code explicitly;
// handlers that return a plain error get CodeHandlerError.
type CodedError struct {
	Code    string
	Message string
}

func (e *CodedError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Fail builds a CodedError, the handler-side equivalent of protocol.Fail.
func Fail(code, message string) error {
	return &CodedError{Code: code, Message: message}
}

// Table is the static command-name → handler mapping. It is built once at
// startup and never mutated afterward, so lookups require no locking.
type Table struct {
	handlers map[string]Handler
}

// NewTable builds a dispatch table from a fixed set of named handlers.
func NewTable(handlers map[string]Handler) *Table {
	copied := make(map[string]Handler, len(handlers))
	for name, h := range handlers {
		copied[name] = h
	}
	return &Table{handlers: copied}
}

// Dispatch resolves cmd.Name, invokes its handler with panic recovery, and
// always returns a well-formed Response — never an error — so the transport
// can encode and write it unconditionally.
func (t *Table) Dispatch(ctx context.Context, cmd protocol.Command) protocol.Response {
	handler, exists := t.handlers[cmd.Name]
	if !exists {
		log.Warn().Str("command", sanitizeForLog(cmd.Name)).Msg("unknown command")
		return protocol.Fail(cmd, protocol.CodeUnknownCommand, "unknown command")
	}

	return t.invoke(ctx, cmd, handler)
}

func (t *Table) invoke(ctx context.Context, cmd protocol.Command, handler Handler) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("command", cmd.Name).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("handler panicked")
			resp = protocol.Fail(cmd, protocol.CodeHandlerError, "internal error handling command")
		}
	}()

	data, err := handler(ctx, cmd)
	if err != nil {
		var coded *CodedError
		if ce, ok := err.(*CodedError); ok {
			coded = ce
			return protocol.Fail(cmd, coded.Code, coded.Message)
		}
		log.Error().Str("command", cmd.Name).Err(err).Msg("handler returned error")
		return protocol.Fail(cmd, protocol.CodeHandlerError, "internal error handling command")
	}
	return protocol.Success(cmd, data, false)
}

// sanitizeForLog escapes control characters and bounds length before an
// attacker-influenced command name reaches a log line.
func sanitizeForLog(name string) string {
	const maxLen = 128
	var b strings.Builder
	for i, r := range name {
		if i >= maxLen {
			b.WriteString("...")
			break
		}
		if r < 0x20 || r == 0x7f {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
