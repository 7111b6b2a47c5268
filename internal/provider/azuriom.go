package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dedeception/Nations-Wars-Launcher/internal/auth"
)

const (
	authenticatePath = "/api/auth/authenticate"
	verifyPath       = "/api/auth/verify"
	logoutPath       = "/api/auth/logout"

	userAgent = "NationsWars-Launcher"
)

// ErrTwoFactorRequired is returned when the account needs a 2FA code to log in.
var ErrTwoFactorRequired = errors.New("two-factor code required")

// APIError is an error payload returned by the Azuriom auth API.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("status=%d reason=%s message=%s", e.StatusCode, e.Reason, e.Message)
}

type userResponse struct {
	UUID        string `json:"uuid"`
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`

	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// AzuriomClient talks to the Azuriom auth API of the Nations Wars website.
type AzuriomClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAzuriomClient(baseURL string, httpClient *http.Client) *AzuriomClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &AzuriomClient{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// NewHTTPClient builds the client used for provider calls, optionally routed
// through an upstream proxy.
func NewHTTPClient(proxy string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy = strings.TrimSpace(proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func (c *AzuriomClient) Authenticate(ctx context.Context, username, password string) (*auth.Session, error) {
	payload, err := c.post(ctx, authenticatePath, map[string]string{
		"email":    username,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if payload.Status == "pending" && payload.Reason == "2fa" {
		return nil, fmt.Errorf("authenticate: %w", ErrTwoFactorRequired)
	}
	return payload.session(), nil
}

func (c *AzuriomClient) Verify(ctx context.Context, accessToken string) (*auth.Session, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, fmt.Errorf("verify: empty access token")
	}

	payload, err := c.post(ctx, verifyPath, map[string]string{"access_token": accessToken})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && rejectsToken(apiErr.StatusCode) {
			return nil, fmt.Errorf("verify: %w: %w", auth.ErrTokenRejected, err)
		}
		return nil, fmt.Errorf("verify: %w", err)
	}
	return payload.session(), nil
}

func (c *AzuriomClient) Logout(ctx context.Context, accessToken string) error {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return fmt.Errorf("logout: empty access token")
	}

	if _, err := c.post(ctx, logoutPath, map[string]string{"access_token": accessToken}); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (c *AzuriomClient) post(ctx context.Context, path string, body map[string]string) (*userResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var payload userResponse
	if trimmed := bytes.TrimSpace(respBody); len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			if resp.StatusCode >= http.StatusBadRequest {
				return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
			}
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest || payload.Status == "error" {
		msg := strings.TrimSpace(payload.Message)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Reason: payload.Reason, Message: msg}
	}

	return &payload, nil
}

// session maps the user payload; the profile uuid becomes the account id and
// stays empty when the server omitted it.
func (p *userResponse) session() *auth.Session {
	return &auth.Session{
		ID:          strings.TrimSpace(p.UUID),
		Username:    p.Username,
		DisplayName: p.Username,
		AccessToken: p.AccessToken,
		ExpiresIn:   p.ExpiresIn,
	}
}

// rejectsToken reports whether a verify status means the token itself was
// refused, as opposed to a transient server problem.
func rejectsToken(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}
