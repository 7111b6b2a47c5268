package account

import "time"

// Type identifies which upstream identity provider issued an account.
type Type string

const (
	TypeMicrosoft Type = "microsoft"
	TypeAzuriom   Type = "azuriom"
)

// AuthMode tags how a validation or refresh was carried out.
type AuthMode string

const (
	// AuthModeFull is a full credential re-authentication.
	AuthModeFull AuthMode = "full"
	// AuthModeProviderRefresh exchanges a refresh artifact with the upstream identity provider.
	AuthModeProviderRefresh AuthMode = "provider_refresh"
	// AuthModeLocalRefresh exchanges the token with the launcher's own auth endpoint.
	AuthModeLocalRefresh AuthMode = "local_refresh"
	// AuthModeCached means the stored token was still valid and nothing was exchanged.
	AuthModeCached AuthMode = "cached"
)

type Account struct {
	ID           string    `json:"uuid"`
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	Type         Type      `json:"type"`
	ExpiresAt    time.Time `json:"expiresAt,omitzero"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Expired reports whether the stored token must be treated as invalid at now.
// Accounts without a known expiry never expire locally.
func (a *Account) Expired(now time.Time) bool {
	if a == nil {
		return true
	}
	if a.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(a.ExpiresAt)
}

func (a *Account) clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
