package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dedeception/Nations-Wars-Launcher/internal/account"
	"github.com/dedeception/Nations-Wars-Launcher/internal/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

var microsoftScopes = []string{"XboxLive.signin", "offline_access"}

// MicrosoftValidator keeps Microsoft accounts alive by exchanging the stored
// refresh token with the Microsoft identity platform once the access token
// has expired.
type MicrosoftValidator struct {
	config     *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

func NewMicrosoftValidator(clientID, tenant string, httpClient *http.Client) *MicrosoftValidator {
	if strings.TrimSpace(tenant) == "" {
		tenant = "consumers"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	endpoint := microsoft.AzureADEndpoint(tenant)
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &MicrosoftValidator{
		config: &oauth2.Config{
			ClientID: strings.TrimSpace(clientID),
			Endpoint: endpoint,
			Scopes:   microsoftScopes,
		},
		httpClient: httpClient,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (v *MicrosoftValidator) Validate(ctx context.Context, acct *account.Account) (auth.Outcome, error) {
	now := v.now()
	if strings.TrimSpace(acct.AccessToken) != "" && !acct.ExpiresAt.IsZero() && !acct.Expired(now) {
		return auth.Outcome{
			Valid:       true,
			Mode:        account.AuthModeCached,
			AccessToken: acct.AccessToken,
			ExpiresAt:   acct.ExpiresAt,
		}, nil
	}

	if strings.TrimSpace(acct.RefreshToken) == "" {
		return auth.Outcome{Mode: account.AuthModeFull, Reason: "no refresh token"}, nil
	}
	if v.config.ClientID == "" {
		return auth.Outcome{}, fmt.Errorf("microsoft refresh: client id not configured")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)
	token, err := v.config.TokenSource(ctx, &oauth2.Token{RefreshToken: acct.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && isRevoked(retrieveErr) {
			return auth.Outcome{
				Mode:   account.AuthModeFull,
				Reason: "refresh token rejected: " + retrieveErr.ErrorCode,
			}, nil
		}
		return auth.Outcome{}, fmt.Errorf("microsoft refresh: %w", err)
	}

	outcome := auth.Outcome{
		Valid:        true,
		Mode:         account.AuthModeProviderRefresh,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		outcome.ExpiresAt = auth.ExpiryTime(now, int64(token.Expiry.Sub(now)/time.Second))
	}
	return outcome, nil
}

func isRevoked(err *oauth2.RetrieveError) bool {
	switch err.ErrorCode {
	case "invalid_grant", "interaction_required", "consent_required":
		return true
	}
	return false
}
