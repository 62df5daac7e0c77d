package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hoistci/runnerseed/internal/config"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating test key: %v", err)
	}
	return key
}

func keyPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

func TestAssertionRoundTrip(t *testing.T) {
	key := testKey(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	app := &AppAuthenticator{
		AppID: 12345,
		Key:   key,
		Now:   func() time.Time { return now },
	}

	assertion, err := app.Assertion()
	if err != nil {
		t.Fatalf("Assertion() error: %v", err)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(assertion, claims, func(tok *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("parsing assertion: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("assertion did not validate against the public key")
	}

	if claims.Issuer != "12345" {
		t.Errorf("iss = %q, want 12345", claims.Issuer)
	}
	if got := claims.IssuedAt.Time; !got.Equal(now.Add(-60 * time.Second)) {
		t.Errorf("iat = %v, want now-60s", got)
	}
	if got := claims.ExpiresAt.Time; !got.Equal(now.Add(540 * time.Second)) {
		t.Errorf("exp = %v, want now+540s", got)
	}
	if window := claims.ExpiresAt.Sub(claims.IssuedAt.Time); window != 600*time.Second {
		t.Errorf("validity window = %v, want exactly 600s", window)
	}
}

func TestInstallationTokenExchange(t *testing.T) {
	key := testKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app/installations/67890/access_tokens" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") || strings.Count(authz, ".") != 2 {
			t.Errorf("Authorization = %q, want a bearer JWT", authz)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"token":"ghs_installation","expires_at":"2026-03-01T13:00:00Z"}`)
	}))
	defer srv.Close()

	app := &AppAuthenticator{
		AppID:          12345,
		InstallationID: 67890,
		Key:            key,
		BaseURL:        srv.URL,
		HTTPClient:     srv.Client(),
	}

	tok, err := app.InstallationToken(context.Background())
	if err != nil {
		t.Fatalf("InstallationToken() error: %v", err)
	}
	if tok.Token != "ghs_installation" {
		t.Errorf("Token = %q", tok.Token)
	}
	if tok.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not decoded")
	}
}

func TestInstallationTokenFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"message":"A JSON web token could not be decoded"}`,
			wantErr: "status 401",
		},
		{
			name:    "empty token field",
			status:  http.StatusCreated,
			body:    `{"token":"","expires_at":"2026-03-01T13:00:00Z"}`,
			wantErr: "no token",
		},
		{
			name:    "unparsable body",
			status:  http.StatusCreated,
			body:    `not json`,
			wantErr: "decoding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			app := &AppAuthenticator{
				AppID:          1,
				InstallationID: 2,
				Key:            testKey(t),
				BaseURL:        srv.URL,
				HTTPClient:     srv.Client(),
			}

			_, err := app.InstallationToken(context.Background())
			if err == nil {
				t.Fatal("InstallationToken() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadPrivateKeyInlineAndFile(t *testing.T) {
	key := testKey(t)
	pemText := keyPEM(t, key)

	inline, err := LoadPrivateKey(config.AuthConfig{PrivateKey: pemText})
	if err != nil {
		t.Fatalf("inline: %v", err)
	}
	if inline.N.Cmp(key.N) != 0 {
		t.Error("inline key does not match")
	}

	path := t.TempDir() + "/app.pem"
	if err := os.WriteFile(path, []byte(pemText), 0600); err != nil {
		t.Fatal(err)
	}
	fromFile, err := LoadPrivateKey(config.AuthConfig{PrivateKeyFile: path})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if fromFile.N.Cmp(key.N) != 0 {
		t.Error("file key does not match")
	}

	if _, err := LoadPrivateKey(config.AuthConfig{PrivateKey: "garbage"}); err == nil {
		t.Error("garbage key parsed, want error")
	}
}

func TestTokenSourcePAT(t *testing.T) {
	ts, err := TokenSource(context.Background(), config.AuthConfig{
		Mode: config.AuthPAT,
		PAT:  "ghp_static",
	}, "https://api.github.com", "2022-11-28", nil)
	if err != nil {
		t.Fatalf("TokenSource() error: %v", err)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if tok.AccessToken != "ghp_static" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
}
