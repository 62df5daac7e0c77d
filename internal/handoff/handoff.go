// Package handoff defines the file contract between the credential
// minter and the worker bootstrapper: one write-once file per run, in a
// shared directory, named by credential variant so the consumer branches
// on presence instead of parsing content.
package handoff

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Fixed file names, one per credential variant.
const (
	// JITConfigFile holds the base64-encoded single-use JIT runner
	// configuration.
	JITConfigFile = "jitconfig"
	// RegistrationTokenFile holds a classic multi-use registration token.
	RegistrationTokenFile = "regtoken"
)

// Variant identifies which credential shape a handoff file carries.
type Variant int

const (
	VariantNone Variant = iota
	VariantJITConfig
	VariantRegistrationToken
)

// String returns the file name for the variant.
func (v Variant) String() string {
	switch v {
	case VariantJITConfig:
		return JITConfigFile
	case VariantRegistrationToken:
		return RegistrationTokenFile
	default:
		return "none"
	}
}

// ErrExists is wrapped into Write errors when the target file already
// exists; the handoff file is write-once by contract.
var ErrExists = errors.New("handoff file already exists")

// Write creates the variant's file in dir with owner-only permissions.
// The directory is created if missing but its permissions are never
// modified: the deployment platform mounts it and chmod on the mount is
// expected to fail or be ignored. An existing file is an error.
func Write(dir string, v Variant, content string) (string, error) {
	if content == "" {
		return "", fmt.Errorf("refusing to write empty %s", v)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating handoff dir: %w", err)
	}

	path := filepath.Join(dir, v.String())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%w: %s", ErrExists, path)
		}
		return "", fmt.Errorf("creating handoff file: %w", err)
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing handoff file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing handoff file: %w", err)
	}
	return path, nil
}

// Detect reports which credential variant is present in dir. The
// single-use JIT config takes precedence when both exist.
func Detect(dir string) Variant {
	if fileExists(filepath.Join(dir, JITConfigFile)) {
		return VariantJITConfig
	}
	if fileExists(filepath.Join(dir, RegistrationTokenFile)) {
		return VariantRegistrationToken
	}
	return VariantNone
}

// Read returns the raw content of the variant's file.
func Read(dir string, v Variant) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, v.String()))
	if err != nil {
		return "", fmt.Errorf("reading handoff file: %w", err)
	}
	return string(data), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
