package cmd

import (
	"context"
	"fmt"

	"github.com/dedeception/Nations-Wars-Launcher/internal/account"
	"github.com/dedeception/Nations-Wars-Launcher/internal/auth"
	"github.com/dedeception/Nations-Wars-Launcher/internal/config"
	"github.com/dedeception/Nations-Wars-Launcher/internal/provider"
	"github.com/rs/zerolog/log"
)

type lifecycle interface {
	AddAccount(ctx context.Context, username, password string) (*account.Account, error)
	ImportAccount(acct *account.Account) (*account.Account, error)
	RemoveAccount(ctx context.Context, id string) error
	ValidateSelected(ctx context.Context) (bool, error)
}

var newLifecycle = func(cfg *config.Config, store *account.Store) (lifecycle, error) {
	return newAuthManager(cfg, store)
}

func newAuthManager(cfg *config.Config, store *account.Store) (*auth.Manager, error) {
	httpClient, err := provider.NewHTTPClient(cfg.Proxy, cfg.ProviderTimeout)
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}

	opts := []auth.Option{
		auth.WithProviderTimeout(cfg.ProviderTimeout),
		auth.WithLogger(log.Logger),
	}
	if cfg.MicrosoftClient != "" {
		opts = append(opts, auth.WithValidator(
			account.TypeMicrosoft,
			provider.NewMicrosoftValidator(cfg.MicrosoftClient, cfg.MicrosoftTenant, httpClient),
		))
	}

	return auth.NewManager(store, provider.NewAzuriomClient(cfg.AuthURL, httpClient), opts...), nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log.Logger = config.InitLogger(cfg.LogLevel)
	return cfg, nil
}

func openStore(cfg *config.Config) (*account.Store, error) {
	var vault *account.Vault
	if cfg.KeyringBackend != "" {
		v, err := account.OpenVault(cfg.KeyringBackend, cfg.KeyringDir(), cfg.KeyringPassword)
		if err != nil {
			return nil, err
		}
		vault = v
	}

	store, err := account.OpenStore(cfg.DataDir, vault)
	if err != nil {
		return nil, fmt.Errorf("open account store: %w", err)
	}
	return store, nil
}

// loadRuntime opens the store and the lifecycle manager used by every command.
func loadRuntime() (*config.Config, *account.Store, lifecycle, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	manager, err := newLifecycle(cfg, store)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, store, manager, nil
}
