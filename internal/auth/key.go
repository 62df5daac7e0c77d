package auth

import (
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/ssh"

	"github.com/hoistci/runnerseed/internal/config"
)

// LoadPrivateKey parses the app private key from inline PEM text or a
// file. The key stays in memory; nothing is written to disk.
func LoadPrivateKey(cfg config.AuthConfig) (*rsa.PrivateKey, error) {
	var pemData []byte
	switch {
	case cfg.PrivateKey != "":
		pemData = []byte(cfg.PrivateKey)
	case cfg.PrivateKeyFile != "":
		data, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading private key file: %w", err)
		}
		pemData = data
	default:
		return nil, fmt.Errorf("no private key configured")
	}

	if cfg.PrivateKeyPassphrase != "" {
		raw, err := ssh.ParseRawPrivateKeyWithPassphrase(pemData, []byte(cfg.PrivateKeyPassphrase))
		if err != nil {
			return nil, fmt.Errorf("decrypting private key: %w", err)
		}
		key, ok := raw.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is %T, want RSA", raw)
		}
		return key, nil
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemData)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return key, nil
}
