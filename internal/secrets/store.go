package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// ErrNoCredentials is returned by Load when nothing has been stored yet.
var ErrNoCredentials = errors.New("secrets: no stored credentials")

// serviceName is the stable keyring service identifier credentials are filed
// under across restarts (spec.md §4.7 "stable service name").
const serviceName = "portfolio-prism"

const credentialItemKey = "tr-credentials"

// Credential is the broker login pair. It is never serialized back to a
// caller in full — only through MaskedPhone below.
type Credential struct {
	Phone string `json:"phone"`
	PIN   string `json:"pin"`
}

// MaskedPhone applies the protocol-level phone masking rule.
func (c Credential) MaskedPhone() string { return MaskPhone(c.Phone) }

// Store persists and retrieves the single broker credential record behind an
// OS-level secret store, mirroring the teacher's SecretProvider shape
// (get/set/delete behind a named backend) narrowed to this engine's one
// secret.
type Store interface {
	Save(ctx context.Context, cred Credential) error
	Load(ctx context.Context) (Credential, error)
	Clear(ctx context.Context) error
}

// KeyringStore is the production Store, backed by the platform credential
// manager (macOS Keychain, Secret Service, Windows Credential Manager) via
// 99designs/keyring, falling back to an encrypted file vault under DataDir
// when no OS backend is available (headless CI, minimal containers).
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore opens (creating if necessary) the credential vault.
// vaultDir is used only by the file-backed fallback and must already exist.
func NewKeyringStore(vaultDir string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		FileDir:                  vaultDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(serviceName),
		KeychainTrustApplication: true,
		KeychainSynchronizable:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("secrets: open credential store: %w", err)
	}
	return &KeyringStore{ring: ring}, nil
}

// Save stores cred, overwriting any prior record.
func (s *KeyringStore) Save(_ context.Context, cred Credential) error {
	body, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("secrets: encode credential: %w", err)
	}
	item := keyring.Item{
		Key:         credentialItemKey,
		Data:        body,
		Label:       "Portfolio Prism broker credential",
		Description: "Trade Republic phone + pin",
	}
	if err := s.ring.Set(item); err != nil {
		return fmt.Errorf("secrets: store credential: %w", err)
	}
	return nil
}

// Load returns the stored credential, or ErrNoCredentials if none exists.
func (s *KeyringStore) Load(_ context.Context) (Credential, error) {
	item, err := s.ring.Get(credentialItemKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return Credential{}, ErrNoCredentials
		}
		return Credential{}, fmt.Errorf("secrets: load credential: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal(item.Data, &cred); err != nil {
		return Credential{}, fmt.Errorf("secrets: decode credential: %w", err)
	}
	return cred, nil
}

// Clear removes the stored credential. Clearing an already-empty store is
// not an error — logout must be idempotent.
func (s *KeyringStore) Clear(_ context.Context) error {
	if err := s.ring.Remove(credentialItemKey); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("secrets: clear credential: %w", err)
	}
	return nil
}
