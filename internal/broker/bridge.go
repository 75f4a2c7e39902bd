// Package broker owns the Trade Republic broker bridge: a single child
// process speaking JSON-RPC over its own stdin/stdout, fronted by a
// mutex that serializes every caller (spec.md §4.6).
package broker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skeptomenos/portfolio-prism-engine/internal/protocol"
)

const (
	readyTimeout   = 5 * time.Second
	requestTimeout = 90 * time.Second
)

// RPCError surfaces a bridge-reported error with the engine's closed code.
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// ErrBridgeDesync is returned (unwrapped) when a response id does not match
// the outstanding request id — the mutex guarantees only one request is
// ever outstanding, so this can only mean the child's stream desynced.
var ErrBridgeDesync = fmt.Errorf("broker: bridge response desync")

// ErrBridgeTimeout is returned when the child does not reply within
// requestTimeout.
var ErrBridgeTimeout = fmt.Errorf("broker: bridge request timed out")

// Spawner constructs the child command. Exposed so tests can substitute a
// fake broker binary without touching the real Trade Republic client.
type Spawner func() *exec.Cmd

// Bridge owns exactly one child process and serializes every caller behind
// a single mutex covering the full write-then-read round trip.
type Bridge struct {
	spawn Spawner

	mu      sync.Mutex // serializes every RPC round trip; see spec.md §4.6 "Concurrency"
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	nextID  int64
	started bool

	restartHook func()
}

// New builds a bridge that has not yet spawned its child. The child is
// started lazily on first call.
func New(spawn Spawner) *Bridge {
	return &Bridge{spawn: spawn}
}

// SetRestartHook registers fn to be called whenever a previously-running
// child is torn down and will be respawned on the next Call. Not called for
// the initial spawn, only for forced teardowns (timeout, desync, write/read
// failure, or Close while a child is running). Safe to call at most once,
// before the bridge's first Call.
func (b *Bridge) SetRestartHook(fn func()) {
	b.restartHook = fn
}

// Call performs one JSON-RPC round trip, spawning the child if necessary.
// Any desync or timeout tears the child down so the next call respawns.
func (b *Bridge) Call(ctx context.Context, method string, params map[string]interface{}) (map[string]interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		if err := b.spawnLocked(); err != nil {
			return nil, err
		}
	}

	id := strconv.FormatInt(atomic.AddInt64(&b.nextID, 1), 10)
	req := protocol.BridgeRequest{Method: method, Params: params, ID: id}
	body, err := protocol.EncodeBridgeRequest(req)
	if err != nil {
		return nil, err
	}

	if _, err := b.stdin.Write(body); err != nil {
		b.teardownLocked()
		return nil, fmt.Errorf("broker: write request: %w", err)
	}

	resp, err := b.readResponseLocked(ctx)
	if err != nil {
		b.teardownLocked()
		return nil, err
	}
	if resp.ID != id {
		b.teardownLocked()
		log.Error().Str("expected_id", id).Str("got_id", resp.ID).Msg("broker bridge response id mismatch, forcing restart")
		return nil, ErrBridgeDesync
	}
	if resp.Error != nil {
		return nil, &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.Result, nil
}

// readResponseLocked reads one line from the child's stdout, racing it
// against requestTimeout and ctx. Caller must hold b.mu.
func (b *Bridge) readResponseLocked(ctx context.Context) (protocol.BridgeResponse, error) {
	type result struct {
		line []byte
		err  error
	}
	lineCh := make(chan result, 1)
	go func() {
		line, err := b.stdout.ReadBytes('\n')
		lineCh <- result{line: line, err: err}
	}()

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()

	select {
	case r := <-lineCh:
		if r.err != nil {
			return protocol.BridgeResponse{}, fmt.Errorf("broker: read response: %w", r.err)
		}
		return protocol.DecodeBridgeResponse(r.line)
	case <-timer.C:
		return protocol.BridgeResponse{}, ErrBridgeTimeout
	case <-ctx.Done():
		return protocol.BridgeResponse{}, ctx.Err()
	}
}

// spawnLocked starts the child and waits for its ready handshake. Caller
// must hold b.mu.
func (b *Bridge) spawnLocked() error {
	cmd := b.spawn()
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("broker: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("broker: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("broker: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return &protocol.DecodeError{Code: protocol.CodeBridgeStartupFailed, Message: "spawn: " + err.Error()}
	}
	go logChildStderr(stderr)

	reader := bufio.NewReader(stdout)
	readyCh := make(chan error, 1)
	go func() {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			readyCh <- err
			return
		}
		_, err = protocol.DecodeBridgeReady(line)
		readyCh <- err
	}()

	select {
	case err := <-readyCh:
		if err != nil {
			_ = cmd.Process.Kill()
			return &protocol.DecodeError{Code: protocol.CodeBridgeStartupFailed, Message: "handshake: " + err.Error()}
		}
	case <-time.After(readyTimeout):
		_ = cmd.Process.Kill()
		return &protocol.DecodeError{Code: protocol.CodeBridgeStartupFailed, Message: "handshake timed out after 5s"}
	}

	b.cmd = cmd
	b.stdin = stdin
	b.stdout = reader
	b.started = true
	return nil
}

// teardownLocked forcibly kills the child and clears all owned state so the
// next Call respawns from scratch. Caller must hold b.mu.
func (b *Bridge) teardownLocked() {
	wasStarted := b.started
	if b.cmd != nil && b.cmd.Process != nil {
		_ = b.cmd.Process.Kill()
		_ = b.cmd.Wait()
	}
	b.cmd = nil
	b.stdin = nil
	b.stdout = nil
	b.started = false
	if wasStarted && b.restartHook != nil {
		b.restartHook()
	}
}

// logChildStderr never touches stdout (the wire) but logs the child's
// diagnostic stream with a prefix, per spec.md §4.6 "Logging discipline".
func logChildStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Warn().Str("source", "broker_child_stderr").Msg(scanner.Text())
	}
}

// Close tears down the child, if running. Safe to call multiple times.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.teardownLocked()
}
