package auth

import "errors"

var (
	// ErrAuthenticationRejected means the provider answered without a usable identity.
	ErrAuthenticationRejected = errors.New("authentication rejected")

	// ErrProviderError covers transport and provider-side failures, timeouts included.
	ErrProviderError = errors.New("provider error")

	ErrAccountNotFound        = errors.New("account not found")
	ErrNoSelectedAccount      = errors.New("no selected account")
	ErrUnsupportedAccountType = errors.New("unsupported account type")

	// ErrRemoval means the account was kept because the removal sequence failed.
	ErrRemoval = errors.New("account removal failed")

	// ErrTokenRejected is returned by providers when the server answered that
	// the token is no longer valid. Validators turn it into a false outcome.
	ErrTokenRejected = errors.New("token rejected")
)
