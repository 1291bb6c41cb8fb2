package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalCertificateStorageRoundTrip(t *testing.T) {
	store, err := NewLocalCertificateStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalCertificateStorage: %v", err)
	}

	key, err := store.Save("CERT-202603-CLOUDS-DEADBEEF", []byte("pdf-bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if key != "CERT-202603-CLOUDS-DEADBEEF.pdf" {
		t.Errorf("key = %s", key)
	}

	path, err := store.ReadablePath(key)
	if err != nil {
		t.Fatalf("ReadablePath: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "pdf-bytes" {
		t.Errorf("content = %q", data)
	}

	if err := store.SafeDelete(key); err != nil {
		t.Fatalf("SafeDelete: %v", err)
	}
	if _, err := store.ReadablePath(key); err == nil {
		t.Error("ReadablePath succeeded after delete")
	}
	// Deleting again must stay silent.
	if err := store.SafeDelete(key); err != nil {
		t.Errorf("repeat SafeDelete: %v", err)
	}
}

func TestLocalCertificateStorageSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalCertificateStorage(dir)
	if err != nil {
		t.Fatalf("NewLocalCertificateStorage: %v", err)
	}

	key, err := store.Save("CERT/2026 03:weird", []byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.ContainsAny(key, "/ :") {
		t.Errorf("key %q contains unsanitized characters", key)
	}
	if _, err := os.Stat(filepath.Join(dir, key)); err != nil {
		t.Errorf("sanitized file missing: %v", err)
	}
}

func TestLocalCertificateStorageRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalCertificateStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalCertificateStorage: %v", err)
	}

	for _, key := range []string{"../outside.pdf", "a/../../b.pdf", "/etc/passwd"} {
		if _, err := store.ReadablePath(key); err == nil {
			t.Errorf("ReadablePath(%q) succeeded, want rejection", key)
		}
		if err := store.SafeDelete(key); err == nil {
			t.Errorf("SafeDelete(%q) succeeded, want rejection", key)
		}
	}
}
