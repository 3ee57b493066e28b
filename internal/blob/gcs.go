package blob

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSConfig struct {
	// Endpoint overrides the API endpoint, for emulators. Authentication is
	// disabled when it is set.
	Endpoint       string
	GoogleAccessID string
	PrivateKeyPath string
}

// GCSStore implements Store on Google Cloud Storage. Credentials come from
// Application Default Credentials unless an explicit signing key is given.
type GCSStore struct {
	client     *storage.Client
	accessID   string
	privateKey []byte
}

func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	var privateKey []byte
	if cfg.PrivateKeyPath != "" {
		key, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read GCS private key: %w", err)
		}
		privateKey = key
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return NewGCSStoreWithClient(client, cfg.GoogleAccessID, privateKey), nil
}

func NewGCSStoreWithClient(client *storage.Client, accessID string, privateKey []byte) *GCSStore {
	return &GCSStore{
		client:     client,
		accessID:   accessID,
		privateKey: privateKey,
	}
}

func (s *GCSStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	wc := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			slog.Warn("Failed to close GCS writer after write failure", "bucket", bucket, "key", key, "error", closeErr)
		}
		return fmt.Errorf("failed to write GCS object %s/%s: %w", bucket, key, err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for object %s/%s: %w", bucket, key, err)
	}

	return nil
}

func (s *GCSStore) SignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(expiry),
	}
	if s.accessID != "" {
		opts.GoogleAccessID = s.accessID
		opts.PrivateKey = s.privateKey
	}

	url, err := s.client.Bucket(bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s/%s: %w", bucket, key, err)
	}
	return url, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
