package sources

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"herald/internal/types"
)

type BrowserConfig struct {
	URL          string
	WaitSelector string
	Wait         time.Duration
	Timeout      time.Duration
	UserAgent    string
}

// BrowserSource renders a page in headless Chrome and returns the DOM. Tabs
// are opened on a shared allocator owned by the browser component.
type BrowserSource struct {
	name      string
	config    BrowserConfig
	allocator context.Context
	logger    *slog.Logger
}

func NewBrowserSource(name string, allocator context.Context, config BrowserConfig, logger *slog.Logger) (*BrowserSource, error) {
	if allocator == nil {
		return nil, fmt.Errorf("source %s: browser allocator is required", name)
	}
	if config.URL == "" {
		return nil, fmt.Errorf("source %s: url is required", name)
	}
	if config.WaitSelector == "" {
		config.WaitSelector = "body"
	}
	if config.Wait < 0 {
		config.Wait = 0
	}
	if config.Timeout <= 0 {
		config.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &BrowserSource{
		name:      name,
		config:    config,
		allocator: allocator,
		logger:    logger.With("source", name),
	}, nil
}

func (s *BrowserSource) Name() string {
	return s.name
}

func (s *BrowserSource) GetContent(ctx context.Context) (*types.SourceDocument, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.allocator)
	defer cancelTab()

	tabCtx, cancel := context.WithTimeout(tabCtx, s.config.Timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		html     string
		finalURL string
	)

	actions := []chromedp.Action{
		s.userAgentAction(),
		chromedp.Navigate(s.config.URL),
		chromedp.WaitReady(s.config.WaitSelector, chromedp.ByQuery),
		chromedp.Sleep(s.config.Wait),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}

	s.logger.Debug("Rendering source", "url", s.config.URL)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to render %s: %w", s.config.URL, err)
	}

	if finalURL == "" {
		finalURL = s.config.URL
	}

	return &types.SourceDocument{
		Address:     finalURL,
		ContentType: "text/html",
		Body:        []byte(html),
	}, nil
}

func (s *BrowserSource) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if s.config.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(s.config.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}
