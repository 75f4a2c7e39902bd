// Package auth implements the Trade Republic authentication state machine
// fronting the broker bridge (spec.md §4.7). get_status never touches the
// broker — it is served entirely from the cached State below, because
// polling the broker for idle status caused documented upstream 429s.
package auth

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/skeptomenos/portfolio-prism-engine/internal/broker"
	"github.com/skeptomenos/portfolio-prism-engine/internal/config"
	"github.com/skeptomenos/portfolio-prism-engine/internal/protocol"
	"github.com/skeptomenos/portfolio-prism-engine/internal/secrets"
)

// State is one node of the authentication state machine.
type State string

const (
	StateIdle            State = "IDLE"
	StateWaitingForTwoFA State = "WAITING_FOR_2FA"
	StateAuthenticated   State = "AUTHENTICATED"
	StateError           State = "ERROR"
)

// CodedError carries one of protocol's closed error codes so the dispatcher
// can surface it verbatim instead of downgrading it to HANDLER_ERROR.
type CodedError struct {
	Code    string
	Message string
}

func (e *CodedError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// brokerClient is the slice of *broker.Bridge this state machine drives.
// Accepting the interface rather than the concrete type lets tests exercise
// every transition without spawning a real child process.
type brokerClient interface {
	Login(ctx context.Context, phone, pin string, remember bool) (broker.LoginResult, error)
	SubmitTwoFactor(ctx context.Context, code string) error
	Logout(ctx context.Context) error
	TryRestoreSession(ctx context.Context) (bool, error)
}

// Manager owns the cached authentication state and fronts every login/2FA
// transition; it is a process-wide singleton (one per broker bridge).
type Manager struct {
	bridge brokerClient
	store  secrets.Store

	mu    sync.Mutex
	state State
	phone string // masked-free; only ever exposed through MaskPhone
}

// NewManager builds a Manager bound to one bridge and one credential store,
// starting in IDLE. bridge is typically the process-wide *broker.Bridge
// singleton from internal/registry.
func NewManager(bridge brokerClient, store secrets.Store) *Manager {
	return &Manager{bridge: bridge, store: store, state: StateIdle}
}

// Status is the cached, broker-free view get_status returns.
type Status struct {
	State          State
	HasCredentials bool
	MaskedPhone    string
}

// Status returns the cached state without ever calling the broker.
func (m *Manager) Status(ctx context.Context) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{State: m.state}
	cred, err := m.store.Load(ctx)
	if err == nil {
		status.HasCredentials = true
		status.MaskedPhone = cred.MaskedPhone()
	}
	return status
}

// Login transitions IDLE -> WAITING_FOR_2FA (or directly to AUTHENTICATED
// on an internal cookie restore) by calling the broker's login method.
func (m *Manager) Login(ctx context.Context, phone, pin string, remember bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, err := m.bridge.Login(ctx, phone, pin, remember)
	if err != nil {
		m.state = StateError
		return classifyBridgeError(err)
	}

	if remember {
		if err := m.store.Save(ctx, secrets.Credential{Phone: phone, PIN: pin}); err != nil {
			log.Warn().Err(err).Msg("failed to persist broker credentials")
		}
	}

	if result.NeedsTwoFactor {
		m.state = StateWaitingForTwoFA
	} else {
		m.state = StateAuthenticated
	}
	m.phone = phone
	return nil
}

// SubmitTwoFactor is valid only from WAITING_FOR_2FA.
func (m *Manager) SubmitTwoFactor(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateWaitingForTwoFA {
		return &CodedError{Code: protocol.CodeTR2FAInvalidState, Message: "not waiting for a 2FA code"}
	}

	if err := m.bridge.SubmitTwoFactor(ctx, code); err != nil {
		if rpcErr, ok := err.(*broker.RPCError); ok && rpcErr.Code == protocol.CodeTR2FAInvalid {
			// A wrong code stays in WAITING_FOR_2FA so the caller can retry.
			return &CodedError{Code: protocol.CodeTR2FAInvalid, Message: "incorrect code"}
		}
		m.state = StateError
		return classifyBridgeError(err)
	}

	m.state = StateAuthenticated
	return nil
}

// Logout clears the session cookie file and in-memory state from any
// state, returning to IDLE.
func (m *Manager) Logout(ctx context.Context, cfg config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.bridge.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("broker logout call failed; clearing local state regardless")
	}

	if err := m.store.Clear(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to clear stored broker credentials")
	}

	cookiePath, err := cfg.ResolveUnderDataDir("tr_cookies.txt")
	if err == nil {
		if rmErr := removeIfExists(cookiePath); rmErr != nil {
			log.Warn().Err(rmErr).Msg("failed to remove session cookie file")
		}
	}

	m.state = StateIdle
	m.phone = ""
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// TryRestoreSession attempts a cookie-based restore without prompting,
// moving straight to AUTHENTICATED on success. Intended for startup.
func (m *Manager) TryRestoreSession(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	restored, err := m.bridge.TryRestoreSession(ctx)
	if err != nil {
		return false, classifyBridgeError(err)
	}
	if restored {
		m.state = StateAuthenticated
	}
	return restored, nil
}

func classifyBridgeError(err error) error {
	if code, message, ok := broker.Classify(err); ok {
		return &CodedError{Code: code, Message: message}
	}
	return &CodedError{Code: protocol.CodeTRAuthError, Message: "broker authentication failed"}
}
