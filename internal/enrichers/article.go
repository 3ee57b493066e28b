package enrichers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"herald/internal/metrics"
	"herald/internal/types"
	"herald/internal/utils"
)

type ArticleConfig struct {
	Concurrency int
	MaxBytes    int64
	Timeout     time.Duration
	UserAgent   string
	// Overwrite replaces fields the extractor already filled.
	Overwrite bool
}

// Article fetches the permalink of every post without a body and fills the
// post from the readable article text. Failures leave the post as extracted.
type Article struct {
	name   string
	client *http.Client
	config ArticleConfig
	logger *slog.Logger
}

func NewArticle(name string, config ArticleConfig, logger *slog.Logger) *Article {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = 5 << 20
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Article{
		name:   name,
		client: &http.Client{Timeout: config.Timeout},
		config: config,
		logger: logger.With("enricher", name),
	}
}

func (a *Article) Name() string {
	return a.name
}

func (a *Article) Enrich(ctx context.Context, posts []*types.ExtractedPost) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Concurrency)

	for _, post := range posts {
		if post.Body != "" && !a.config.Overwrite {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if err := a.enrichPost(gctx, post); err != nil {
				metrics.ObserveArticle(metrics.OutcomeFailure)
				a.logger.Warn("Failed to fetch article", "permalink", post.Permalink, "error", err)
				return nil
			}
			metrics.ObserveArticle(metrics.OutcomeSuccess)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (a *Article) enrichPost(ctx context.Context, post *types.ExtractedPost) error {
	pageURL, err := url.Parse(post.Permalink)
	if err != nil {
		return fmt.Errorf("invalid permalink: %w", err)
	}

	req, err := utils.NewBrowserRequest(ctx, post.Permalink, a.config.UserAgent, nil)
	if err != nil {
		return err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if !utils.IsSuccess(resp.StatusCode) {
		return fmt.Errorf("failed to fetch page: %s", resp.Status)
	}

	body, err := utils.ReadLimited(resp.Body, a.config.MaxBytes)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return fmt.Errorf("failed to extract content: %w", err)
	}

	a.fill(&post.Body, article.TextContent)
	a.fill(&post.Title, article.Title)
	a.fill(&post.Summary, article.Excerpt)
	a.fill(&post.Author, article.Byline)
	a.fill(&post.Thumbnail, article.Image)
	return nil
}

func (a *Article) fill(field *string, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if *field == "" || a.config.Overwrite {
		*field = value
	}
}
