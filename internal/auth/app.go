package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Assertion window. The issued-at is backdated to tolerate clock skew;
// the whole window is 600 seconds, inside GitHub's 10-minute limit.
const (
	assertionBackdate = 60 * time.Second
	assertionTTL      = 540 * time.Second
)

// AppAuthenticator signs a short-lived GitHub App assertion and exchanges
// it for an installation access token. The assertion is held in memory
// only and discarded after the exchange.
type AppAuthenticator struct {
	AppID          int64
	InstallationID int64
	Key            *rsa.PrivateKey

	BaseURL    string
	APIVersion string
	HTTPClient *http.Client // optional; defaults to http.DefaultClient

	// Now allows tests to pin the clock.
	Now func() time.Time
}

func (a *AppAuthenticator) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

func (a *AppAuthenticator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Assertion builds and signs the app JWT: iat = now-60s, exp = now+540s,
// iss = app id, RS256.
func (a *AppAuthenticator) Assertion() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-assertionBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
		Issuer:    strconv.FormatInt(a.AppID, 10),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.Key)
	if err != nil {
		return "", fmt.Errorf("signing app assertion: %w", err)
	}
	return signed, nil
}

// InstallationToken is the response of the access-token exchange.
type InstallationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InstallationToken exchanges a fresh assertion for an installation
// access token. Any failure is terminal; nothing is retried.
func (a *AppAuthenticator) InstallationToken(ctx context.Context) (*InstallationToken, error) {
	assertion, err := a.Assertion()
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.BaseURL, a.InstallationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+assertion)
	if a.APIVersion != "" {
		req.Header.Set("X-GitHub-Api-Version", a.APIVersion)
	}

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchanging app assertion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tok InstallationToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decoding token exchange response: %w", err)
	}
	if tok.Token == "" {
		return nil, fmt.Errorf("token exchange response has no token")
	}
	return &tok, nil
}
