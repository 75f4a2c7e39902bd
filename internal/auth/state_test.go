package auth

import (
	"context"
	"os"
	"testing"

	"github.com/skeptomenos/portfolio-prism-engine/internal/broker"
	"github.com/skeptomenos/portfolio-prism-engine/internal/config"
	"github.com/skeptomenos/portfolio-prism-engine/internal/protocol"
	"github.com/skeptomenos/portfolio-prism-engine/internal/secrets"
)

type fakeBroker struct {
	loginResult   broker.LoginResult
	loginErr      error
	submitErr     error
	logoutErr     error
	restoreResult bool
	restoreErr    error
	submitCalls   int
	logoutCalls   int
}

func (f *fakeBroker) Login(ctx context.Context, phone, pin string, remember bool) (broker.LoginResult, error) {
	return f.loginResult, f.loginErr
}
func (f *fakeBroker) SubmitTwoFactor(ctx context.Context, code string) error {
	f.submitCalls++
	return f.submitErr
}
func (f *fakeBroker) Logout(ctx context.Context) error {
	f.logoutCalls++
	return f.logoutErr
}
func (f *fakeBroker) TryRestoreSession(ctx context.Context) (bool, error) {
	return f.restoreResult, f.restoreErr
}

type memStore struct {
	cred *secrets.Credential
}

func (m *memStore) Save(_ context.Context, cred secrets.Credential) error {
	c := cred
	m.cred = &c
	return nil
}
func (m *memStore) Load(_ context.Context) (secrets.Credential, error) {
	if m.cred == nil {
		return secrets.Credential{}, secrets.ErrNoCredentials
	}
	return *m.cred, nil
}
func (m *memStore) Clear(_ context.Context) error {
	m.cred = nil
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{DataDir: dir}
}

func TestManager_GetStatus_NeverCallsBroker(t *testing.T) {
	fb := &fakeBroker{}
	m := NewManager(fb, &memStore{})

	status := m.Status(context.Background())
	if status.State != StateIdle {
		t.Fatalf("expected IDLE, got %s", status.State)
	}
	if fb.submitCalls != 0 || fb.logoutCalls != 0 {
		t.Fatal("get_status must never call the broker")
	}
}

func TestManager_Login_MovesToWaitingForTwoFA(t *testing.T) {
	fb := &fakeBroker{loginResult: broker.LoginResult{NeedsTwoFactor: true}}
	m := NewManager(fb, &memStore{})

	if err := m.Login(context.Background(), "+491234", "1234", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status := m.Status(context.Background()); status.State != StateWaitingForTwoFA {
		t.Fatalf("expected WAITING_FOR_2FA, got %s", status.State)
	}
}

func TestManager_Login_CookieRestoreSkipsTwoFA(t *testing.T) {
	fb := &fakeBroker{loginResult: broker.LoginResult{NeedsTwoFactor: false}}
	m := NewManager(fb, &memStore{})

	if err := m.Login(context.Background(), "+491234", "1234", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status := m.Status(context.Background()); status.State != StateAuthenticated {
		t.Fatalf("expected AUTHENTICATED, got %s", status.State)
	}
}

func TestManager_Login_PersistsCredentialWhenRemembered(t *testing.T) {
	fb := &fakeBroker{loginResult: broker.LoginResult{NeedsTwoFactor: true}}
	store := &memStore{}
	m := NewManager(fb, store)

	if err := m.Login(context.Background(), "+491234567", "1234", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status := m.Status(context.Background())
	if !status.HasCredentials {
		t.Fatal("expected credentials to be persisted")
	}
	if status.MaskedPhone == "+491234567" {
		t.Fatal("expected phone to be masked, not returned in full")
	}
}

func TestManager_SubmitTwoFactor_WrongStateReturnsInvalidState(t *testing.T) {
	fb := &fakeBroker{}
	m := NewManager(fb, &memStore{})

	err := m.SubmitTwoFactor(context.Background(), "1234")
	coded, ok := err.(*CodedError)
	if !ok || coded.Code != protocol.CodeTR2FAInvalidState {
		t.Fatalf("expected TR_2FA_INVALID_STATE, got %v", err)
	}
	if fb.submitCalls != 0 {
		t.Fatal("broker must not be called when state is invalid")
	}
}

func TestManager_SubmitTwoFactor_Success(t *testing.T) {
	fb := &fakeBroker{loginResult: broker.LoginResult{NeedsTwoFactor: true}}
	m := NewManager(fb, &memStore{})
	_ = m.Login(context.Background(), "+491234", "1234", false)

	if err := m.SubmitTwoFactor(context.Background(), "0000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status := m.Status(context.Background()); status.State != StateAuthenticated {
		t.Fatalf("expected AUTHENTICATED, got %s", status.State)
	}
}

func TestManager_Logout_ClearsStateAndCredentialsAndCookie(t *testing.T) {
	fb := &fakeBroker{loginResult: broker.LoginResult{NeedsTwoFactor: false}}
	store := &memStore{}
	m := NewManager(fb, store)
	cfg := testConfig(t)

	_ = m.Login(context.Background(), "+491234", "1234", true)
	cookiePath, err := cfg.ResolveUnderDataDir("tr_cookies.txt")
	if err != nil {
		t.Fatalf("resolve cookie path: %v", err)
	}
	if err := os.WriteFile(cookiePath, []byte("session"), 0o600); err != nil {
		t.Fatalf("write cookie: %v", err)
	}

	if err := m.Logout(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status := m.Status(context.Background()); status.State != StateIdle || status.HasCredentials {
		t.Fatalf("expected IDLE with no credentials, got %+v", status)
	}
	if _, err := os.Stat(cookiePath); !os.IsNotExist(err) {
		t.Fatal("expected cookie file to be removed")
	}
	if fb.logoutCalls != 1 {
		t.Fatal("expected broker logout to be called exactly once")
	}
}

func TestManager_Logout_IsIdempotentWhenNothingStored(t *testing.T) {
	fb := &fakeBroker{}
	m := NewManager(fb, &memStore{})
	cfg := testConfig(t)

	if err := m.Logout(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error on first logout: %v", err)
	}
	if err := m.Logout(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error on second logout: %v", err)
	}
}

func TestManager_TryRestoreSession_Success(t *testing.T) {
	fb := &fakeBroker{restoreResult: true}
	m := NewManager(fb, &memStore{})

	restored, err := m.TryRestoreSession(context.Background())
	if err != nil || !restored {
		t.Fatalf("expected restored=true, nil error, got %v %v", restored, err)
	}
	if status := m.Status(context.Background()); status.State != StateAuthenticated {
		t.Fatalf("expected AUTHENTICATED, got %s", status.State)
	}
}
