package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const configFileName = "config.json"

var ErrNotFound = errors.New("account not found")

type document struct {
	ClientToken     string              `json:"clientToken,omitempty"`
	SelectedAccount string              `json:"selectedAccount,omitempty"`
	Accounts        map[string]*Account `json:"authenticationDatabase"`
}

// Store is the launcher's local configuration store for authenticated accounts.
// Mutations stay in memory until Save is called.
type Store struct {
	dataDir string
	vault   *Vault
	now     func() time.Time

	mu      sync.RWMutex
	doc     document
	removed map[string]struct{}
}

func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		now:     func() time.Time { return time.Now().UTC() },
		doc:     document{Accounts: map[string]*Account{}},
		removed: map[string]struct{}{},
	}
}

// OpenStore creates a store and loads any existing configuration from dataDir.
func OpenStore(dataDir string, vault *Vault) (*Store, error) {
	s := NewStore(dataDir)
	s.vault = vault
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string {
	return filepath.Join(s.dataDir, configFileName)
}

func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := document{Accounts: map[string]*Account{}}
	content, err := os.ReadFile(s.Path())
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("load store: read file: %w", err)
	default:
		if err := json.Unmarshal(content, &doc); err != nil {
			return fmt.Errorf("load store: unmarshal json: %w", err)
		}
		if doc.Accounts == nil {
			doc.Accounts = map[string]*Account{}
		}
	}

	if s.vault != nil {
		for id, acct := range doc.Accounts {
			access, refresh, err := s.vault.Get(id)
			if err != nil {
				return fmt.Errorf("load store: read vault: %w", err)
			}
			if access != "" {
				acct.AccessToken = access
			}
			if refresh != "" {
				acct.RefreshToken = refresh
			}
		}
	}

	s.doc = doc
	s.removed = map[string]struct{}{}
	return nil
}

// Save flushes the store to disk, replacing the previous file atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := document{
		ClientToken:     s.doc.ClientToken,
		SelectedAccount: s.doc.SelectedAccount,
		Accounts:        make(map[string]*Account, len(s.doc.Accounts)),
	}
	for id, acct := range s.doc.Accounts {
		cp := acct.clone()
		if s.vault != nil {
			if err := s.vault.Put(id, cp.AccessToken, cp.RefreshToken); err != nil {
				return fmt.Errorf("save store: write vault: %w", err)
			}
			cp.AccessToken = ""
			cp.RefreshToken = ""
		}
		out.Accounts[id] = cp
	}
	if s.vault != nil {
		for id := range s.removed {
			if err := s.vault.Delete(id); err != nil {
				return fmt.Errorf("save store: clear vault: %w", err)
			}
		}
	}

	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("save store: marshal json: %w", err)
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("save store: ensure data dir: %w", err)
	}

	path := s.Path()
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o600); err != nil {
		return fmt.Errorf("save store: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("save store: rename temp file: %w", err)
	}

	s.removed = map[string]struct{}{}
	return nil
}

// UpsertAccount inserts or replaces the record keyed by acct.ID and selects it.
func (s *Store) UpsertAccount(acct *Account) (*Account, error) {
	if acct == nil {
		return nil, fmt.Errorf("upsert account: nil account")
	}
	id := strings.TrimSpace(acct.ID)
	if id == "" {
		return nil, fmt.Errorf("upsert account: empty id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored := acct.clone()
	stored.ID = id
	stored.UpdatedAt = now
	if prev, ok := s.doc.Accounts[id]; ok && !prev.CreatedAt.IsZero() {
		stored.CreatedAt = prev.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	s.doc.Accounts[id] = stored
	s.doc.SelectedAccount = id
	delete(s.removed, id)

	return stored.clone(), nil
}

// GetAccount returns a copy of the record, or nil when id is unknown.
func (s *Store) GetAccount(id string) *Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Accounts[id].clone()
}

func (s *Store) GetAccessToken(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.doc.Accounts[id]
	if !ok {
		return "", false
	}
	return acct.AccessToken, true
}

// UpdateAccessToken replaces the credentials of an existing account. An empty
// refreshToken keeps the stored one.
func (s *Store) UpdateAccessToken(id, accessToken, refreshToken string, expiresAt time.Time) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.doc.Accounts[id]
	if !ok {
		return nil, fmt.Errorf("update access token: %w", ErrNotFound)
	}

	acct.AccessToken = strings.TrimSpace(accessToken)
	if refresh := strings.TrimSpace(refreshToken); refresh != "" {
		acct.RefreshToken = refresh
	}
	acct.ExpiresAt = expiresAt
	acct.UpdatedAt = s.now()

	return acct.clone(), nil
}

// RemoveAccount deletes the record. If it was selected, the oldest remaining
// account becomes selected.
func (s *Store) RemoveAccount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Accounts[id]; !ok {
		return fmt.Errorf("remove account: %w", ErrNotFound)
	}
	delete(s.doc.Accounts, id)
	s.removed[id] = struct{}{}

	if s.doc.SelectedAccount == id {
		s.doc.SelectedAccount = ""
		if remaining := s.sortedLocked(); len(remaining) > 0 {
			s.doc.SelectedAccount = remaining[0].ID
		}
	}
	return nil
}

func (s *Store) ListAccounts() []*Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.sortedLocked()
	out := make([]*Account, 0, len(sorted))
	for _, acct := range sorted {
		out = append(out, acct.clone())
	}
	return out
}

func (s *Store) GetSelectedAccount() *Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc.SelectedAccount == "" {
		return nil
	}
	return s.doc.Accounts[s.doc.SelectedAccount].clone()
}

func (s *Store) SelectAccount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Accounts[id]; !ok {
		return fmt.Errorf("select account: %w", ErrNotFound)
	}
	s.doc.SelectedAccount = id
	return nil
}

func (s *Store) GetClientToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.ClientToken
}

func (s *Store) SetClientToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.ClientToken = token
}

// Checkpoint is an in-memory copy of the store contents taken before a change
// that may fail to persist.
type Checkpoint struct {
	doc     document
	removed map[string]struct{}
}

func (s *Store) Checkpoint() Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := Checkpoint{
		doc: document{
			ClientToken:     s.doc.ClientToken,
			SelectedAccount: s.doc.SelectedAccount,
			Accounts:        make(map[string]*Account, len(s.doc.Accounts)),
		},
		removed: make(map[string]struct{}, len(s.removed)),
	}
	for id, acct := range s.doc.Accounts {
		cp.doc.Accounts[id] = acct.clone()
	}
	for id := range s.removed {
		cp.removed[id] = struct{}{}
	}
	return cp
}

// Rollback discards every unsaved change made since cp was taken.
func (s *Store) Rollback(cp Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = document{
		ClientToken:     cp.doc.ClientToken,
		SelectedAccount: cp.doc.SelectedAccount,
		Accounts:        make(map[string]*Account, len(cp.doc.Accounts)),
	}
	for id, acct := range cp.doc.Accounts {
		s.doc.Accounts[id] = acct.clone()
	}
	s.removed = make(map[string]struct{}, len(cp.removed))
	for id := range cp.removed {
		s.removed[id] = struct{}{}
	}
}

// ResolveID maps a user-supplied account reference to a stored id. Exact ids
// win; otherwise a UUID in dashed or undashed form matches the stored id
// naming the same UUID.
func (s *Store) ResolveID(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.doc.Accounts[ref]; ok {
		return ref, true
	}
	want, err := uuid.Parse(ref)
	if err != nil {
		return "", false
	}
	for _, acct := range s.sortedLocked() {
		if got, err := uuid.Parse(acct.ID); err == nil && got == want {
			return acct.ID, true
		}
	}
	return "", false
}

func (s *Store) sortedLocked() []*Account {
	accounts := make([]*Account, 0, len(s.doc.Accounts))
	for _, acct := range s.doc.Accounts {
		accounts = append(accounts, acct)
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts
}
