package account

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestStoreLifecycle(t *testing.T) {
	dataDir := t.TempDir()
	store := NewStore(dataDir)

	saved, err := store.UpsertAccount(&Account{
		ID:          "u1",
		AccessToken: "t1",
		Username:    "bob",
		DisplayName: "bob",
		Type:        TypeAzuriom,
	})
	if err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}
	if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Fatal("UpsertAccount() left timestamps zero")
	}
	if selected := store.GetSelectedAccount(); selected == nil || selected.ID != "u1" {
		t.Fatalf("GetSelectedAccount() = %+v, want u1", selected)
	}

	store.SetClientToken("u1")
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("config perm = %v, want 0600", info.Mode().Perm())
	}

	reloaded, err := OpenStore(dataDir, nil)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if got := reloaded.GetClientToken(); got != "u1" {
		t.Fatalf("GetClientToken() = %q, want u1", got)
	}
	token, ok := reloaded.GetAccessToken("u1")
	if !ok || token != "t1" {
		t.Fatalf("GetAccessToken() = %q, %v, want t1, true", token, ok)
	}

	expiresAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	updated, err := reloaded.UpdateAccessToken("u1", "t2", "", expiresAt)
	if err != nil {
		t.Fatalf("UpdateAccessToken() error = %v", err)
	}
	if updated.AccessToken != "t2" || !updated.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("UpdateAccessToken() = %+v", updated)
	}

	if err := reloaded.RemoveAccount("u1"); err != nil {
		t.Fatalf("RemoveAccount() error = %v", err)
	}
	if reloaded.GetAccount("u1") != nil {
		t.Fatal("GetAccount() after remove returned record")
	}
	if reloaded.GetSelectedAccount() != nil {
		t.Fatal("GetSelectedAccount() after removing last account returned record")
	}
	if got := reloaded.GetClientToken(); got != "u1" {
		t.Fatalf("client token after removal = %q, want u1", got)
	}
}

func TestStoreMissingAccount(t *testing.T) {
	store := NewStore(t.TempDir())

	if _, ok := store.GetAccessToken("missing"); ok {
		t.Fatal("GetAccessToken(missing) ok = true")
	}
	if err := store.RemoveAccount("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("RemoveAccount(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.SelectAccount("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SelectAccount(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := store.UpdateAccessToken("missing", "t", "", time.Time{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateAccessToken(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := store.UpsertAccount(&Account{ID: "  "}); err == nil {
		t.Fatal("UpsertAccount(empty id) error = nil")
	}
}

func TestStoreRemoveSelectedFallsBack(t *testing.T) {
	store := NewStore(t.TempDir())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tick := base
	store.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}

	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.UpsertAccount(&Account{ID: id, Username: id}); err != nil {
			t.Fatalf("UpsertAccount(%s) error = %v", id, err)
		}
	}
	if got := store.GetSelectedAccount().ID; got != "c" {
		t.Fatalf("selected = %q, want c", got)
	}

	if err := store.RemoveAccount("c"); err != nil {
		t.Fatalf("RemoveAccount() error = %v", err)
	}
	if got := store.GetSelectedAccount().ID; got != "a" {
		t.Fatalf("selected after removal = %q, want a", got)
	}

	accounts := store.ListAccounts()
	if len(accounts) != 2 || accounts[0].ID != "a" || accounts[1].ID != "b" {
		t.Fatalf("ListAccounts() = %+v", accounts)
	}
}

func TestStoreUpsertKeepsCreatedAt(t *testing.T) {
	store := NewStore(t.TempDir())

	first, err := store.UpsertAccount(&Account{ID: "u1", AccessToken: "t1"})
	if err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}
	second, err := store.UpsertAccount(&Account{ID: "u1", AccessToken: "t2"})
	if err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("CreatedAt = %s, want %s", second.CreatedAt, first.CreatedAt)
	}
	if len(store.ListAccounts()) != 1 {
		t.Fatalf("len(ListAccounts()) = %d, want 1", len(store.ListAccounts()))
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.UpsertAccount(&Account{ID: "u1", AccessToken: "t1"}); err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}

	got := store.GetAccount("u1")
	got.AccessToken = "mutated"

	if token, _ := store.GetAccessToken("u1"); token != "t1" {
		t.Fatalf("stored token = %q, want t1", token)
	}
}

func TestStoreLoadInvalidJSON(t *testing.T) {
	dataDir := t.TempDir()
	store := NewStore(dataDir)
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	err := store.Load()
	if err == nil || !strings.Contains(err.Error(), "unmarshal json") {
		t.Fatalf("Load() error = %v, want unmarshal error", err)
	}
}

func TestStoreCheckpointRollback(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.UpsertAccount(&Account{ID: "u1", AccessToken: "t1"}); err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}
	store.SetClientToken("c1")
	before := store.GetAccount("u1")

	cp := store.Checkpoint()
	if _, err := store.UpsertAccount(&Account{ID: "u2", AccessToken: "t2"}); err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}
	if _, err := store.UpdateAccessToken("u1", "t9", "", time.Time{}); err != nil {
		t.Fatalf("UpdateAccessToken() error = %v", err)
	}
	if err := store.RemoveAccount("u1"); err != nil {
		t.Fatalf("RemoveAccount() error = %v", err)
	}
	store.SetClientToken("c2")

	store.Rollback(cp)

	if store.GetAccount("u2") != nil {
		t.Fatal("u2 survived rollback")
	}
	after := store.GetAccount("u1")
	if after == nil || after.AccessToken != "t1" || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("u1 = %+v, want %+v", after, before)
	}
	if selected := store.GetSelectedAccount(); selected == nil || selected.ID != "u1" {
		t.Fatalf("selected = %+v, want u1", selected)
	}
	if token := store.GetClientToken(); token != "c1" {
		t.Fatalf("client token = %q, want c1", token)
	}
}

func TestStoreResolveID(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, id := range []string{"550e8400e29b41d4a716446655440000", "steve-offline"} {
		if _, err := store.UpsertAccount(&Account{ID: id, AccessToken: "t"}); err != nil {
			t.Fatalf("UpsertAccount(%q) error = %v", id, err)
		}
	}

	cases := map[string]string{
		"550e8400e29b41d4a716446655440000":     "550e8400e29b41d4a716446655440000",
		"550e8400-e29b-41d4-a716-446655440000": "550e8400e29b41d4a716446655440000",
		" steve-offline ":                      "steve-offline",
	}
	for ref, want := range cases {
		got, ok := store.ResolveID(ref)
		if !ok || got != want {
			t.Fatalf("ResolveID(%q) = %q, %v, want %q, true", ref, got, ok, want)
		}
	}
	for _, ref := range []string{"", "unknown", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"} {
		if got, ok := store.ResolveID(ref); ok {
			t.Fatalf("ResolveID(%q) = %q, true, want not found", ref, got)
		}
	}
}
