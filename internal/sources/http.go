// Package sources fetches raw documents for the pipeline.
package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"herald/internal/types"
	"herald/internal/utils"
)

type HTTPConfig struct {
	URL       string
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
	MaxBytes  int64
}

// HTTPSource fetches one URL with a plain GET.
type HTTPSource struct {
	name   string
	config HTTPConfig
	client *http.Client
	logger *slog.Logger
}

func NewHTTPSource(name string, config HTTPConfig, logger *slog.Logger) (*HTTPSource, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("source %s: url is required", name)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = 10 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPSource{
		name:   name,
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With("source", name),
	}, nil
}

func (s *HTTPSource) Name() string {
	return s.name
}

func (s *HTTPSource) GetContent(ctx context.Context) (*types.SourceDocument, error) {
	req, err := utils.NewBrowserRequest(ctx, s.config.URL, s.config.UserAgent, s.config.Headers)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Fetching source", "url", s.config.URL)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.config.URL, err)
	}
	defer resp.Body.Close()

	if !utils.IsSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("failed to fetch %s: %s", s.config.URL, resp.Status)
	}

	body, err := utils.ReadLimited(resp.Body, s.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.config.URL, err)
	}

	s.logger.Debug("Fetched source", "url", resp.Request.URL.String(), "bytes", len(body))

	return &types.SourceDocument{
		Address:     resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
