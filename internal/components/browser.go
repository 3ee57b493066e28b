package components

import (
	"context"

	"github.com/chromedp/chromedp"
)

type BrowserConfig struct {
	Headless  bool
	UserAgent string
}

// BrowserComponent owns the headless Chrome allocator shared by browser
// sources. Chrome itself is started lazily by the first tab.
type BrowserComponent struct {
	config    BrowserConfig
	allocator context.Context
	cancel    context.CancelFunc
}

func NewBrowserComponent(config BrowserConfig) *BrowserComponent {
	return &BrowserComponent{config: config}
}

func (c *BrowserComponent) Name() string {
	return BrowserComponentName
}

func (c *BrowserComponent) Dependencies() []string {
	return []string{}
}

func (c *BrowserComponent) Validate() error {
	return nil
}

func (c *BrowserComponent) Initialize(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if c.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.config.UserAgent))
	}

	c.allocator, c.cancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return nil
}

func (c *BrowserComponent) Close(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return nil
}

func (c *BrowserComponent) Allocator() context.Context {
	return c.allocator
}
