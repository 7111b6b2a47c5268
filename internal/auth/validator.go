package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dedeception/Nations-Wars-Launcher/internal/account"
)

// Outcome is the result of validating one account. When Valid is false the
// caller must run a full login again.
type Outcome struct {
	Valid        bool
	Mode         account.AuthMode
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Reason       string
}

// Validator checks, and if needed renews, the credentials of one account type.
type Validator interface {
	Validate(ctx context.Context, acct *account.Account) (Outcome, error)
}

type ValidatorFunc func(ctx context.Context, acct *account.Account) (Outcome, error)

func (f ValidatorFunc) Validate(ctx context.Context, acct *account.Account) (Outcome, error) {
	return f(ctx, acct)
}

// verifyValidator asks the launcher's auth endpoint whether the token is
// still live. The token is valid only if the server resolves it to the same
// profile id and username that we stored.
type verifyValidator struct {
	provider Provider
	now      func() time.Time
}

func (v *verifyValidator) Validate(ctx context.Context, acct *account.Account) (Outcome, error) {
	outcome := Outcome{Mode: account.AuthModeLocalRefresh}
	if strings.TrimSpace(acct.AccessToken) == "" {
		outcome.Reason = "no access token"
		return outcome, nil
	}

	session, err := v.provider.Verify(ctx, acct.AccessToken)
	if errors.Is(err, ErrTokenRejected) {
		outcome.Reason = "token rejected by provider"
		return outcome, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case session == nil:
		outcome.Reason = "empty verify response"
		return outcome, nil
	case session.ID != acct.ID:
		outcome.Reason = "profile id mismatch"
		return outcome, nil
	case session.Username != acct.Username:
		outcome.Reason = "username mismatch"
		return outcome, nil
	}

	outcome.Valid = true
	outcome.AccessToken = session.AccessToken
	if outcome.AccessToken == "" {
		outcome.AccessToken = acct.AccessToken
	}
	outcome.ExpiresAt = sessionExpiry(v.now(), session)
	if outcome.ExpiresAt.IsZero() && outcome.AccessToken == acct.AccessToken {
		outcome.ExpiresAt = acct.ExpiresAt
	}
	return outcome, nil
}
