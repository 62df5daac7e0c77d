package handoff

import (
	"errors"
	"os"
	"runtime"
	"testing"
)

func TestWritePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	dir := t.TempDir()

	path, err := Write(dir, VariantJITConfig, "blob")
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 0600 (group/other must have no access)", perm)
	}
}

func TestWriteOnce(t *testing.T) {
	dir := t.TempDir()

	if _, err := Write(dir, VariantRegistrationToken, "first"); err != nil {
		t.Fatalf("first Write() error: %v", err)
	}
	_, err := Write(dir, VariantRegistrationToken, "second")
	if !errors.Is(err, ErrExists) {
		t.Errorf("second Write() error = %v, want ErrExists", err)
	}

	content, err := Read(dir, VariantRegistrationToken)
	if err != nil {
		t.Fatal(err)
	}
	if content != "first" {
		t.Errorf("content = %q, first write must be immutable", content)
	}
}

func TestWriteRejectsEmpty(t *testing.T) {
	dir := t.TempDir()

	if _, err := Write(dir, VariantJITConfig, ""); err == nil {
		t.Fatal("Write() accepted empty content")
	}
	if Detect(dir) != VariantNone {
		t.Error("empty write left a file behind")
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	if got := Detect(dir); got != VariantNone {
		t.Errorf("Detect(empty) = %v, want VariantNone", got)
	}

	if _, err := Write(dir, VariantRegistrationToken, "tok"); err != nil {
		t.Fatal(err)
	}
	if got := Detect(dir); got != VariantRegistrationToken {
		t.Errorf("Detect = %v, want VariantRegistrationToken", got)
	}

	// JIT config wins when both are present.
	if _, err := Write(dir, VariantJITConfig, "blob"); err != nil {
		t.Fatal(err)
	}
	if got := Detect(dir); got != VariantJITConfig {
		t.Errorf("Detect = %v, want VariantJITConfig preference", got)
	}
}

func TestReadMissing(t *testing.T) {
	dir := t.TempDir()
	if _, err := Read(dir, VariantJITConfig); err == nil {
		t.Error("Read() of missing file succeeded")
	}
}
