package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore writes objects below a base directory, one subdirectory per
// bucket. URLs are unsigned.
type LocalStore struct {
	baseDir string
	baseURL string
}

func NewLocalStore(baseDir, baseURL string) (*LocalStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(baseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if err := os.MkdirAll(baseDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	return &LocalStore{
		baseDir: abs,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *LocalStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	fullPath, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func (s *LocalStore) SignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	fullPath, err := s.resolve(bucket, key)
	if err != nil {
		return "", err
	}

	if s.baseURL == "" {
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(fullPath)}).String(), nil
	}

	return s.baseURL + "/" + url.PathEscape(bucket) + "/" + escapeKey(key), nil
}

func (s *LocalStore) resolve(bucket, key string) (string, error) {
	if strings.TrimSpace(bucket) == "" || strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("bucket and key are required")
	}

	bucketDir := filepath.Join(s.baseDir, bucket)
	fullPath := filepath.Join(bucketDir, key)

	if !strings.HasPrefix(filepath.Clean(bucketDir), s.baseDir+string(filepath.Separator)) ||
		!strings.HasPrefix(filepath.Clean(fullPath), filepath.Clean(bucketDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}

	return fullPath, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
