package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalCertificateStorage stores rendered certificate PDFs on the local
// filesystem under a single flat directory, keyed by certificate number.
type LocalCertificateStorage struct {
	dir string
}

// NewLocalCertificateStorage ensures the directory exists and returns the
// store.
func NewLocalCertificateStorage(dir string) (*LocalCertificateStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create certificate directory: %w", err)
	}
	return &LocalCertificateStorage{dir: dir}, nil
}

// Save writes the PDF and returns its file key.
func (s *LocalCertificateStorage) Save(certificateNo string, pdf []byte) (string, error) {
	key := sanitizeFileKey(certificateNo) + ".pdf"
	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write certificate pdf: %w", err)
	}
	return key, nil
}

// SafeDelete removes a stored PDF. Missing files are not an error: the
// duplicate-issuance cleanup path may race with another delete.
func (s *LocalCertificateStorage) SafeDelete(fileKey string) error {
	path, err := s.resolve(fileKey)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete certificate pdf: %w", err)
	}
	return nil
}

// ReadablePath resolves a file key to an absolute path, verifying the file
// exists.
func (s *LocalCertificateStorage) ReadablePath(fileKey string) (string, error) {
	path, err := s.resolve(fileKey)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("certificate pdf missing: %w", err)
	}
	return path, nil
}

// resolve joins and re-checks that the key cannot escape the storage dir.
func (s *LocalCertificateStorage) resolve(fileKey string) (string, error) {
	cleaned := filepath.Clean(fileKey)
	if cleaned != fileKey || strings.Contains(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid file key: %q", fileKey)
	}
	return filepath.Join(s.dir, cleaned), nil
}

func sanitizeFileKey(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
