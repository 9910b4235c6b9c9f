// Package identity wraps the external identity provider's REST surface.
// The provider owns credentials, token issuance and refresh; this package
// only relays those operations and classifies the provider's opaque error
// codes for the login form.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client calls the identity provider REST endpoints. A zero API key means
// the provider is unconfigured: every sign-in operation fails with
// ErrNotConfigured and token refresh degrades to a soft failure upstream.
type Client struct {
	apiKey     string
	signInBase string
	tokenBase  string
	httpClient *http.Client
}

// NewClient builds an identity client. signInBase and tokenBase point at the
// provider's account and secure-token API roots.
func NewClient(apiKey, signInBase, tokenBase string) *Client {
	return &Client{
		apiKey:     apiKey,
		signInBase: strings.TrimRight(signInBase, "/"),
		tokenBase:  strings.TrimRight(tokenBase, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether the provider can be called at all.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Credentials is the provider-issued token bundle for one principal.
type Credentials struct {
	UserID       string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

type signInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// SignInWithPassword exchanges an email/password pair for provider tokens.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Credentials, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	payload := map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}
	var out signInResponse
	if err := c.postJSON(ctx, fmt.Sprintf("%s/accounts:signInWithPassword?key=%s", c.signInBase, url.QueryEscape(c.apiKey)), payload, &out); err != nil {
		return nil, err
	}
	return credentialsFromSignIn(out), nil
}

// SignInWithIDP exchanges an OAuth provider ID token (e.g. Google) for
// provider tokens via the signInWithIdp endpoint.
func (c *Client) SignInWithIDP(ctx context.Context, providerIDToken string) (*Credentials, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	payload := map[string]interface{}{
		"postBody":            fmt.Sprintf("id_token=%s&providerId=google.com", url.QueryEscape(providerIDToken)),
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}
	var out signInResponse
	if err := c.postJSON(ctx, fmt.Sprintf("%s/accounts:signInWithIdp?key=%s", c.signInBase, url.QueryEscape(c.apiKey)), payload, &out); err != nil {
		return nil, err
	}
	return credentialsFromSignIn(out), nil
}

// RefreshIDToken trades a refresh token for a fresh ID token.
func (c *Client) RefreshIDToken(ctx context.Context, refreshToken string) (*Credentials, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/token?key=%s", c.tokenBase, url.QueryEscape(c.apiKey)),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, providerErrorFromBody(resp.StatusCode, body)
	}

	var out refreshResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unexpected token response: %w", err)
	}
	return &Credentials{
		UserID:       out.UserID,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    expiryFrom(out.ExpiresIn),
	}, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providerErrorFromBody(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unexpected provider response: %w", err)
	}
	return nil
}

func credentialsFromSignIn(resp signInResponse) *Credentials {
	return &Credentials{
		UserID:       resp.LocalID,
		Email:        resp.Email,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expiryFrom(resp.ExpiresIn),
	}
}

func expiryFrom(expiresIn string) time.Time {
	seconds, err := strconv.Atoi(expiresIn)
	if err != nil || seconds <= 0 {
		seconds = 3600
	}
	return time.Now().Add(time.Duration(seconds) * time.Second)
}
