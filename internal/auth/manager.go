package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dedeception/Nations-Wars-Launcher/internal/account"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultProviderTimeout = 30 * time.Second

// Session is what the authentication provider returns for a login or a
// token verification.
type Session struct {
	ID          string
	Username    string
	DisplayName string
	AccessToken string
	ExpiresIn   int64
}

// Provider is the remote authentication service.
type Provider interface {
	Authenticate(ctx context.Context, username, password string) (*Session, error)
	Logout(ctx context.Context, accessToken string) error
	Verify(ctx context.Context, accessToken string) (*Session, error)
}

// Store is the subset of the account store the manager mutates.
type Store interface {
	UpsertAccount(acct *account.Account) (*account.Account, error)
	GetAccount(id string) *account.Account
	GetAccessToken(id string) (string, bool)
	UpdateAccessToken(id, accessToken, refreshToken string, expiresAt time.Time) (*account.Account, error)
	RemoveAccount(id string) error
	GetSelectedAccount() *account.Account
	SelectAccount(id string) error
	GetClientToken() string
	SetClientToken(token string)
	Checkpoint() account.Checkpoint
	Rollback(cp account.Checkpoint)
	Save() error
}

// Manager drives the account lifecycle: login, removal and validation of the
// selected account. Store mutations are only made after the provider accepted
// the operation, and lifecycle calls are serialized.
type Manager struct {
	store      Store
	provider   Provider
	validators map[account.Type]Validator
	timeout    time.Duration
	now        func() time.Time
	logger     zerolog.Logger

	mu sync.Mutex
}

type Option func(*Manager)

// WithValidator registers the validator used for accounts of type t.
func WithValidator(t account.Type, v Validator) Option {
	return func(m *Manager) {
		if v != nil {
			m.validators[t] = v
		}
	}
}

// WithProviderTimeout bounds every provider call. Non-positive values are ignored.
func WithProviderTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(store Store, provider Provider, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		provider:   provider,
		validators: map[account.Type]Validator{},
		timeout:    defaultProviderTimeout,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     log.Logger,
	}
	m.validators[account.TypeAzuriom] = &verifyValidator{
		provider: provider,
		now:      func() time.Time { return m.now() },
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddAccount logs in with the provider and stores the resulting account as
// the selected one. The first account ever added also seeds the client token.
func (m *Manager) AddAccount(ctx context.Context, username, password string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pctx, cancel := m.providerContext(ctx)
	defer cancel()

	session, err := m.provider.Authenticate(pctx, username, password)
	if err != nil {
		m.logger.Error().
			Err(err).
			Str("username", username).
			Bool("timeout", errors.Is(err, context.DeadlineExceeded)).
			Msg("auth manager: authenticate failed")
		return nil, fmt.Errorf("add account: %w: %w", ErrProviderError, err)
	}
	if session == nil || strings.TrimSpace(session.ID) == "" {
		m.logger.Error().
			Bool("alert", true).
			Str("username", username).
			Msg("auth manager: provider session has no profile id")
		return nil, fmt.Errorf("add account: %w: missing profile id", ErrAuthenticationRejected)
	}

	displayName := session.DisplayName
	if displayName == "" {
		displayName = session.Username
	}

	id := strings.TrimSpace(session.ID)
	cp := m.store.Checkpoint()

	stored, err := m.store.UpsertAccount(&account.Account{
		ID:          id,
		AccessToken: session.AccessToken,
		Username:    session.Username,
		DisplayName: displayName,
		Type:        account.TypeAzuriom,
		ExpiresAt:   sessionExpiry(m.now(), session),
	})
	if err != nil {
		return nil, fmt.Errorf("add account: %w", err)
	}
	if m.store.GetClientToken() == "" {
		m.store.SetClientToken(stored.ID)
	}
	if err := m.store.Save(); err != nil {
		m.logger.Error().Err(err).Str("uuid", id).Msg("auth manager: persist added account failed")
		m.store.Rollback(cp)
		return nil, fmt.Errorf("add account: persist store: %w", err)
	}

	m.logger.Info().
		Str("uuid", stored.ID).
		Str("username", stored.Username).
		Msg("auth manager: account added")
	return stored, nil
}

// ImportAccount stores an account that was authenticated outside this
// manager, such as a Microsoft login completed by the launcher UI.
func (m *Manager) ImportAccount(acct *account.Account) (*account.Account, error) {
	if acct == nil || strings.TrimSpace(acct.ID) == "" {
		return nil, fmt.Errorf("import account: %w: missing profile id", ErrAuthenticationRejected)
	}
	if acct.Type != account.TypeAzuriom && acct.Type != account.TypeMicrosoft {
		return nil, fmt.Errorf("import account: %w: %q", ErrUnsupportedAccountType, acct.Type)
	}
	if strings.TrimSpace(acct.AccessToken) == "" && strings.TrimSpace(acct.RefreshToken) == "" {
		return nil, fmt.Errorf("import account: %w: no credentials", ErrAuthenticationRejected)
	}
	if acct.Type == account.TypeAzuriom && strings.TrimSpace(acct.AccessToken) == "" {
		return nil, fmt.Errorf("import account: %w: azuriom account without access token", ErrAuthenticationRejected)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := m.store.Checkpoint()
	stored, err := m.store.UpsertAccount(acct)
	if err != nil {
		return nil, fmt.Errorf("import account: %w", err)
	}
	if m.store.GetClientToken() == "" {
		m.store.SetClientToken(stored.ID)
	}
	if err := m.store.Save(); err != nil {
		m.logger.Error().Err(err).Str("uuid", acct.ID).Msg("auth manager: persist imported account failed")
		m.store.Rollback(cp)
		return nil, fmt.Errorf("import account: persist store: %w", err)
	}

	m.logger.Info().
		Str("uuid", stored.ID).
		Str("type", string(stored.Type)).
		Msg("auth manager: account imported")
	return stored, nil
}

// RemoveAccount invalidates the account's token upstream and then deletes the
// local record. If the provider cannot confirm the logout the record is kept.
func (m *Manager) RemoveAccount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.store.GetAccount(id)
	if acct == nil {
		return fmt.Errorf("remove account: %w: %s", ErrAccountNotFound, id)
	}
	token, _ := m.store.GetAccessToken(id)

	if acct.Type == account.TypeMicrosoft || token == "" {
		// Microsoft tokens cannot be revoked through the launcher endpoint.
		m.logger.Debug().
			Str("uuid", id).
			Str("type", string(acct.Type)).
			Msg("auth manager: skipping remote logout")
	} else {
		pctx, cancel := m.providerContext(ctx)
		err := m.provider.Logout(pctx, token)
		cancel()
		if err != nil {
			m.logger.Error().
				Err(err).
				Str("uuid", id).
				Msg("auth manager: error while removing account")
			return fmt.Errorf("remove account: %w: %w: %w", ErrRemoval, ErrProviderError, err)
		}
	}

	cp := m.store.Checkpoint()
	if err := m.store.RemoveAccount(id); err != nil {
		m.logger.Error().Err(err).Str("uuid", id).Msg("auth manager: error while removing account")
		return fmt.Errorf("remove account: %w: %w", ErrRemoval, err)
	}
	if err := m.store.Save(); err != nil {
		m.logger.Error().Err(err).Str("uuid", id).Msg("auth manager: error while removing account")
		m.store.Rollback(cp)
		return fmt.Errorf("remove account: %w: persist store: %w", ErrRemoval, err)
	}

	m.logger.Info().Str("uuid", id).Msg("auth manager: account removed")
	return nil
}

// ValidateSelected checks the selected account's token and stores the
// renewed credentials. It returns false, without error, when the token is
// no longer valid and a new login is required. Provider failures are errors.
func (m *Manager) ValidateSelected(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.store.GetSelectedAccount()
	if current == nil {
		return false, fmt.Errorf("validate selected: %w", ErrNoSelectedAccount)
	}

	validator := m.validatorFor(current.Type)
	if validator == nil {
		return false, fmt.Errorf("validate selected: %w: %q", ErrUnsupportedAccountType, current.Type)
	}

	pctx, cancel := m.providerContext(ctx)
	defer cancel()

	outcome, err := validator.Validate(pctx, current)
	if err != nil {
		m.logger.Error().
			Err(err).
			Str("uuid", current.ID).
			Str("type", string(current.Type)).
			Bool("timeout", errors.Is(err, context.DeadlineExceeded)).
			Msg("auth manager: error while validating selected profile")
		return false, fmt.Errorf("validate selected: %w: %w", ErrProviderError, err)
	}
	if !outcome.Valid {
		m.logger.Info().
			Str("uuid", current.ID).
			Str("mode", string(outcome.Mode)).
			Str("reason", outcome.Reason).
			Msg("auth manager: account access token is invalid")
		return false, nil
	}

	cp := m.store.Checkpoint()
	if _, err := m.store.UpdateAccessToken(current.ID, outcome.AccessToken, outcome.RefreshToken, outcome.ExpiresAt); err != nil {
		return false, fmt.Errorf("validate selected: %w", err)
	}
	if err := m.store.Save(); err != nil {
		m.logger.Error().Err(err).Str("uuid", current.ID).Msg("auth manager: persist validated token failed")
		m.store.Rollback(cp)
		return false, fmt.Errorf("validate selected: persist store: %w", err)
	}

	m.logger.Info().
		Str("uuid", current.ID).
		Str("mode", string(outcome.Mode)).
		Msg("auth manager: account access token validated")
	return true, nil
}

// validatorFor returns the registered validator, falling back to the
// launcher verify endpoint for every non-Microsoft account type.
func (m *Manager) validatorFor(t account.Type) Validator {
	if v, ok := m.validators[t]; ok {
		return v
	}
	if t == account.TypeMicrosoft {
		return nil
	}
	return m.validators[account.TypeAzuriom]
}

func (m *Manager) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, m.timeout)
}
