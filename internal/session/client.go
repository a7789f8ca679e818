package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	id "github.com/sabbirahammad/currency/pkg/domain"
	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
)

// Auth call timeout. Identity calls are small JSON exchanges; anything
// slower than this is treated as a failed attempt.
const authCallTimeout = 15 * time.Second

// Credentials is the identity service's grant for one session.
type Credentials struct {
	IdentityID  id.IdentityID
	IsAnonymous bool

	// IDToken is an optional JWT describing the granted identity. Inspected
	// for diagnostics only, never verified locally.
	IDToken string
}

// AuthAPI is the identity service surface the manager depends on.
//
//go:generate mockgen -source=client.go -destination=mocks/mocks.go -package=mocks AuthAPI
type AuthAPI interface {
	// SignInAnonymously provisions a fresh anonymous identity.
	SignInAnonymously(ctx context.Context) (*Credentials, error)

	// SignInWithToken exchanges a pre-issued credential token for a session.
	SignInWithToken(ctx context.Context, token string) (*Credentials, error)

	// SignOut invalidates the identity's server-side session. Best effort:
	// local state is already cleared when this is called.
	SignOut(ctx context.Context, identityID id.IdentityID) error
}

// HTTPAuthClient talks to the identity service over JSON HTTP.
type HTTPAuthClient struct {
	baseURL       string
	applicationID id.ApplicationID
	httpClient    *http.Client
	logger        *slog.Logger
}

// AuthClientOption configures an HTTPAuthClient.
type AuthClientOption func(*HTTPAuthClient)

// WithAuthHTTPClient replaces the underlying HTTP client.
func WithAuthHTTPClient(c *http.Client) AuthClientOption {
	return func(a *HTTPAuthClient) {
		a.httpClient = c
	}
}

// WithAuthLogger sets the logger.
func WithAuthLogger(l *slog.Logger) AuthClientOption {
	return func(a *HTTPAuthClient) {
		a.logger = l
	}
}

// NewHTTPAuthClient creates an identity service client. An empty endpoint is
// an operator error: the caller decides whether that is fatal or surfaces as
// a configuration failure at bootstrap.
func NewHTTPAuthClient(baseURL string, applicationID id.ApplicationID, opts ...AuthClientOption) (*HTTPAuthClient, error) {
	if baseURL == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "identity service endpoint is not configured")
	}
	c := &HTTPAuthClient{
		baseURL:       baseURL,
		applicationID: applicationID.OrDefault(),
		httpClient:    &http.Client{Timeout: authCallTimeout},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type signInRequest struct {
	Token         string `json:"token,omitempty"`
	ApplicationID string `json:"applicationId"`
}

type signInResponse struct {
	IdentityID  string `json:"identityId"`
	IsAnonymous bool   `json:"isAnonymous"`
	IDToken     string `json:"idToken"`
}

type signOutRequest struct {
	IdentityID    string `json:"identityId"`
	ApplicationID string `json:"applicationId"`
}

// SignInAnonymously provisions a fresh anonymous identity scoped to the
// configured application.
func (c *HTTPAuthClient) SignInAnonymously(ctx context.Context) (*Credentials, error) {
	return c.signIn(ctx, signInRequest{ApplicationID: c.applicationID.String()}, "sessions:anonymous")
}

// SignInWithToken exchanges a pre-issued credential token for a session.
func (c *HTTPAuthClient) SignInWithToken(ctx context.Context, token string) (*Credentials, error) {
	if token == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential token is empty")
	}
	return c.signIn(ctx, signInRequest{Token: token, ApplicationID: c.applicationID.String()}, "sessions:token")
}

// SignOut invalidates the server-side session for the identity.
func (c *HTTPAuthClient) SignOut(ctx context.Context, identityID id.IdentityID) error {
	payload := signOutRequest{
		IdentityID:    identityID.String(),
		ApplicationID: c.applicationID.String(),
	}
	resp, err := c.post(ctx, "sessions:invalidate", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return dErrors.Newf(dErrors.CodeAuth, "sign-out rejected with status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPAuthClient) signIn(ctx context.Context, payload signInRequest, endpoint string) (*Credentials, error) {
	resp, err := c.post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Bodies on auth failures are small; drain so the connection can be
		// reused, but nothing in them changes the outcome.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, dErrors.Newf(dErrors.CodeAuth, "identity service rejected sign-in with status %d", resp.StatusCode)
	}

	var body signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAuth, "identity service returned an unreadable grant")
	}

	identityID, err := id.ParseIdentityID(body.IdentityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAuth, "identity service returned an unusable identity id")
	}

	return &Credentials{
		IdentityID:  identityID,
		IsAnonymous: body.IsAnonymous,
		IDToken:     body.IDToken,
	}, nil
}

func (c *HTTPAuthClient) post(ctx context.Context, endpoint string, payload any) (*http.Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	url := fmt.Sprintf("%s/v1/%s", c.baseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAuth, "identity service unreachable")
	}
	return resp, nil
}
