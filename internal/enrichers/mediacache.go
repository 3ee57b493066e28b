// Package enrichers mutates unseen posts before delivery.
package enrichers

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"herald/internal/blob"
	"herald/internal/metrics"
	"herald/internal/types"
	"herald/internal/utils"
)

const defaultContentType = "application/octet-stream"

var preferredExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/avif":    ".avif",
	"image/svg+xml": ".svg",
	"video/mp4":     ".mp4",
	"video/webm":    ".webm",
}

type MediaCacheConfig struct {
	Bucket string
	// KeyFormat is a template over .ID, .Ext, .Hash and .Bucket. The default
	// key is the bare ID.
	KeyFormat string
	// URLFormat is a template over .Bucket and .Key. When set it replaces
	// signed URLs.
	URLFormat   string
	URLExpiry   time.Duration
	Concurrency int
	MaxBytes    int64
	Timeout     time.Duration
	UserAgent   string
}

// MediaCache rehosts post media and avatars into a blob store and rewrites
// the post to point at the copies. A reference that cannot be cached is left
// untouched.
type MediaCache struct {
	name      string
	store     blob.Store
	client    *http.Client
	config    MediaCacheConfig
	keyFormat *template.Template
	urlFormat *template.Template
	newID     func() (string, error)
	logger    *slog.Logger
}

func NewMediaCache(name string, store blob.Store, config MediaCacheConfig, logger *slog.Logger) (*MediaCache, error) {
	if store == nil {
		return nil, fmt.Errorf("media cache %s: store is required", name)
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("media cache %s: bucket is required", name)
	}
	if config.URLExpiry <= 0 {
		config.URLExpiry = 7 * 24 * time.Hour
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = 25 << 20
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache := &MediaCache{
		name:   name,
		store:  store,
		client: &http.Client{Timeout: config.Timeout},
		config: config,
		newID:  newUUID,
		logger: logger.With("enricher", name),
	}

	if config.KeyFormat != "" {
		tmpl, err := utils.ParseTemplate(name+"-key", config.KeyFormat)
		if err != nil {
			return nil, fmt.Errorf("media cache %s: invalid key_format: %w", name, err)
		}
		cache.keyFormat = tmpl
	}

	if config.URLFormat != "" {
		tmpl, err := utils.ParseTemplate(name+"-url", config.URLFormat)
		if err != nil {
			return nil, fmt.Errorf("media cache %s: invalid url_format: %w", name, err)
		}
		cache.urlFormat = tmpl
	}

	return cache, nil
}

func (m *MediaCache) Name() string {
	return m.name
}

// Enrich processes posts concurrently and the references of a single post
// sequentially, so each distinct reference is fetched once per post.
func (m *MediaCache) Enrich(ctx context.Context, posts []*types.ExtractedPost) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.Concurrency)

	for _, post := range posts {
		g.Go(func() error {
			m.enrichPost(gctx, post)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (m *MediaCache) enrichPost(ctx context.Context, post *types.ExtractedPost) {
	for _, uri := range post.MediaURIs() {
		if ctx.Err() != nil {
			return
		}

		cached, err := m.cache(ctx, uri)
		if err != nil {
			metrics.ObserveMedia(metrics.OutcomeFailure)
			m.logger.Warn("Failed to cache media", "permalink", post.Permalink, "uri", uri, "error", err)
			continue
		}

		metrics.ObserveMedia(metrics.OutcomeSuccess)
		post.ReplaceMedia(uri, cached)
		m.logger.Debug("Cached media", "permalink", post.Permalink, "uri", uri, "cached", cached)
	}
}

func (m *MediaCache) cache(ctx context.Context, uri string) (string, error) {
	req, err := utils.NewBrowserRequest(ctx, uri, m.config.UserAgent, map[string]string{"Accept": "*/*"})
	if err != nil {
		return "", err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if !utils.IsSuccess(resp.StatusCode) {
		return "", fmt.Errorf("failed to fetch media: %s", resp.Status)
	}

	data, err := utils.ReadLimited(resp.Body, m.config.MaxBytes)
	if err != nil {
		return "", fmt.Errorf("failed to read media: %w", err)
	}

	contentType := mediaType(resp.Header.Get("Content-Type"))

	id, err := m.newID()
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}

	key, err := m.objectKey(id, uri, contentType)
	if err != nil {
		return "", err
	}

	if err := m.store.Put(ctx, m.config.Bucket, key, data, contentType); err != nil {
		return "", fmt.Errorf("failed to store media: %w", err)
	}

	return m.externalURI(ctx, key)
}

func (m *MediaCache) objectKey(id, uri, contentType string) (string, error) {
	if m.keyFormat == nil {
		return id, nil
	}

	key, err := utils.RenderTemplate(m.keyFormat, map[string]any{
		"ID":     id,
		"Ext":    extensionFor(contentType, uri),
		"Hash":   utils.HashURI(uri),
		"Bucket": m.config.Bucket,
	})
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("key_format rendered an empty key")
	}
	return key, nil
}

func (m *MediaCache) externalURI(ctx context.Context, key string) (string, error) {
	if m.urlFormat != nil {
		return utils.RenderTemplate(m.urlFormat, map[string]any{
			"Bucket": m.config.Bucket,
			"Key":    key,
		})
	}

	signed, err := m.store.SignedURL(ctx, m.config.Bucket, key, m.config.URLExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign media URL: %w", err)
	}
	return signed, nil
}

func newUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func mediaType(header string) string {
	if header == "" {
		return defaultContentType
	}
	parsed, _, err := mime.ParseMediaType(header)
	if err != nil || parsed == "" {
		return defaultContentType
	}
	return parsed
}

func extensionFor(contentType, uri string) string {
	if ext, ok := preferredExtensions[contentType]; ok {
		return ext
	}

	if u, err := url.Parse(uri); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 6 {
			return ext
		}
	}

	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
