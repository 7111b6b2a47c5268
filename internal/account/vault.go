package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

// ServiceName is the keyring namespace for stored launcher credentials.
const ServiceName = "nations-wars-launcher"

type vaultSecret struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Vault keeps account tokens in the OS keyring instead of config.json.
type Vault struct {
	ring keyring.Keyring
}

func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// OpenVault opens a keyring restricted to a single backend (for example
// "keychain", "wincred", "secret-service" or "file").
func OpenVault(backend, fileDir, password string) (*Vault, error) {
	backend = strings.TrimSpace(backend)
	if backend == "" {
		return nil, fmt.Errorf("open vault: empty keyring backend")
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:      ServiceName,
		AllowedBackends:  []keyring.BackendType{keyring.BackendType(backend)},
		FileDir:          fileDir,
		FilePasswordFunc: keyring.FixedStringPrompt(password),
	})
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	return NewVault(ring), nil
}

func (v *Vault) Put(id, accessToken, refreshToken string) error {
	data, err := json.Marshal(vaultSecret{AccessToken: accessToken, RefreshToken: refreshToken})
	if err != nil {
		return fmt.Errorf("vault put: marshal: %w", err)
	}
	if err := v.ring.Set(keyring.Item{
		Key:   itemKey(id),
		Data:  data,
		Label: "Nations Wars account " + id,
	}); err != nil {
		return fmt.Errorf("vault put: %w", err)
	}
	return nil
}

// Get returns empty tokens when nothing is stored for id.
func (v *Vault) Get(id string) (string, string, error) {
	item, err := v.ring.Get(itemKey(id))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("vault get: %w", err)
	}

	var secret vaultSecret
	if err := json.Unmarshal(item.Data, &secret); err != nil {
		return "", "", fmt.Errorf("vault get: unmarshal: %w", err)
	}
	return secret.AccessToken, secret.RefreshToken, nil
}

func (v *Vault) Delete(id string) error {
	if err := v.ring.Remove(itemKey(id)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("vault delete: %w", err)
	}
	return nil
}

func itemKey(id string) string {
	return "account:" + id
}
