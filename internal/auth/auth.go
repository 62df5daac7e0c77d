// Package auth produces the bearer token the minter uses against the
// GitHub API: a static PAT, or a GitHub App assertion exchanged for an
// installation access token.
package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/hoistci/runnerseed/internal/config"
	"github.com/hoistci/runnerseed/internal/log"
)

// TokenSource returns an oauth2 token source for the configured auth
// mode. In App mode the assertion exchange happens here, once, before the
// source is returned; the process is single-shot so no refresh is needed.
func TokenSource(ctx context.Context, cfg config.AuthConfig, baseURL, apiVersion string, httpClient *http.Client) (oauth2.TokenSource, error) {
	switch cfg.Mode {
	case config.AuthPAT:
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.PAT,
			TokenType:   "Bearer",
		}), nil

	case config.AuthApp:
		key, err := LoadPrivateKey(cfg)
		if err != nil {
			return nil, err
		}
		app := &AppAuthenticator{
			AppID:          cfg.AppID,
			InstallationID: cfg.InstallationID,
			Key:            key,
			BaseURL:        baseURL,
			APIVersion:     apiVersion,
			HTTPClient:     httpClient,
		}
		tok, err := app.InstallationToken(ctx)
		if err != nil {
			return nil, err
		}
		log.Debug("exchanged app assertion for installation token",
			"app_id", cfg.AppID, "installation_id", cfg.InstallationID, "expires_at", tok.ExpiresAt)
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: tok.Token,
			TokenType:   "Bearer",
			Expiry:      tok.ExpiresAt,
		}), nil

	default:
		return nil, fmt.Errorf("unknown auth mode %d", cfg.Mode)
	}
}
