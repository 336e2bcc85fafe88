package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testKDF() KDFParams { return KDFParams{Memory: 8 * 1024, Time: 1, Parallelism: 1} }

func TestFileBackendPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "creds", "portal.json")

	b, err := NewFileBackend(path, FileOptions{})
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	if err := b.Set(ctx, "accessToken", "a1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	reopened, err := NewFileBackend(path, FileOptions{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok, err := reopened.Get(ctx, "accessToken"); err != nil || !ok || v != "a1" {
		t.Fatalf("expected a1 after reopen, got %q ok=%v err=%v", v, ok, err)
	}
	if err := reopened.Delete(ctx, "accessToken"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := reopened.Get(ctx, "accessToken"); ok {
		t.Fatalf("expected entry deleted")
	}
}

func TestFileBackendSealedValuesAreNotPlaintext(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "portal.json")
	opts := FileOptions{Passphrase: "correct horse battery", KDF: testKDF()}

	b, err := NewFileBackend(path, opts)
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	if err := b.Set(ctx, "refreshToken", "super-secret-refresh"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(raw), "super-secret-refresh") {
		t.Fatalf("sealed file leaks plaintext")
	}

	reopened, err := NewFileBackend(path, opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok, err := reopened.Get(ctx, "refreshToken"); err != nil || !ok || v != "super-secret-refresh" {
		t.Fatalf("unexpected unseal: %q ok=%v err=%v", v, ok, err)
	}

	wrong, err := NewFileBackend(path, FileOptions{Passphrase: "wrong passphrase!", KDF: testKDF()})
	if err != nil {
		t.Fatalf("open with wrong passphrase should load: %v", err)
	}
	if _, _, err := wrong.Get(ctx, "refreshToken"); !errors.Is(err, ErrSealedValue) {
		t.Fatalf("expected ErrSealedValue, got %v", err)
	}

	if _, err := NewFileBackend(path, FileOptions{}); err == nil {
		t.Fatalf("expected error opening sealed file without passphrase")
	}
}

func TestSealerBindsKeyName(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt: %v", err)
	}
	s, err := NewSealer([]byte("passphrase-123"), salt, testKDF())
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	sealed, err := s.Seal("accessToken", "tok")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := s.Open("refreshToken", sealed); !errors.Is(err, ErrSealedValue) {
		t.Fatalf("expected moved ciphertext to be rejected, got %v", err)
	}
	if v, err := s.Open("accessToken", sealed); err != nil || v != "tok" {
		t.Fatalf("Open: %q %v", v, err)
	}
}

func TestNewSealerRejectsWeakInput(t *testing.T) {
	salt := make([]byte, 16)
	if _, err := NewSealer([]byte("short"), salt, testKDF()); err == nil {
		t.Fatalf("expected short passphrase rejection")
	}
	if _, err := NewSealer([]byte("long enough pass"), salt[:4], testKDF()); err == nil {
		t.Fatalf("expected short salt rejection")
	}
	if _, err := NewSealer([]byte("long enough pass"), salt, KDFParams{Memory: 1024, Time: 1, Parallelism: 1}); err == nil {
		t.Fatalf("expected weak memory rejection")
	}
}
