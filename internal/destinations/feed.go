package destinations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/feeds"

	"herald/internal/cache"
	"herald/internal/storage"
	"herald/internal/types"
	"herald/internal/utils"
)

const (
	FormatRSS  = "rss"
	FormatAtom = "atom"
	FormatJSON = "json"
)

type FeedConfig struct {
	Title       string
	Link        string
	Description string
	MaxItems    int
	Retention   time.Duration
	CacheTTL    time.Duration
}

type renderKey struct {
	feed   string
	format string
}

func (k renderKey) String() string {
	return k.feed + ":" + k.format
}

type renderedFeed struct {
	body        string
	contentType string
}

// Feed stores delivered posts and renders them as a syndication feed.
type Feed struct {
	name     string
	config   FeedConfig
	store    storage.FeedStore
	rendered *cache.Cache[renderKey, renderedFeed]
	logger   *slog.Logger
}

func NewFeed(name string, store storage.FeedStore, config FeedConfig, logger *slog.Logger) (*Feed, error) {
	if store == nil {
		return nil, fmt.Errorf("destination %s: feed store is required", name)
	}
	if config.Title == "" {
		config.Title = fmt.Sprintf("Herald Feed (%s)", name)
	}
	if config.Link == "" {
		config.Link = "http://localhost/"
	}
	if config.Description == "" {
		config.Description = "Posts collected by herald"
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 50
	}
	if config.Retention == 0 {
		config.Retention = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Feed{
		name:     name,
		config:   config,
		store:    store,
		rendered: cache.NewCache[renderKey, renderedFeed](cache.CacheConfig{TTL: config.CacheTTL}, renderKey.String),
		logger:   logger.With("destination", name),
	}, nil
}

func (f *Feed) Name() string {
	return f.name
}

func (f *Feed) Share(ctx context.Context, posts []*types.ExtractedPost) error {
	for _, post := range posts {
		if err := f.store.InsertEntry(ctx, f.name, toFeedEntry(post)); err != nil {
			return fmt.Errorf("failed to store %s: %w", post.Permalink, err)
		}
	}
	f.rendered.InvalidatePrefix(f.name + ":")

	if f.config.Retention > 0 {
		deleted, err := f.store.DeleteOlderThan(ctx, f.name, f.config.Retention)
		if err != nil {
			f.logger.Warn("Failed to prune feed entries", "error", err)
		} else if deleted > 0 {
			f.logger.Debug("Pruned feed entries", "count", deleted)
		}
	}

	f.logger.Info("Stored feed entries", "count", len(posts))
	return nil
}

// Render builds the feed in the requested format and returns it together
// with its content type. Output is cached until the next Share.
func (f *Feed) Render(ctx context.Context, format string) (string, string, error) {
	key := renderKey{feed: f.name, format: format}
	if cached, ok := f.rendered.Get(key); ok {
		return cached.body, cached.contentType, nil
	}

	var contentType string
	switch format {
	case FormatRSS:
		contentType = "application/rss+xml; charset=utf-8"
	case FormatAtom:
		contentType = "application/atom+xml; charset=utf-8"
	case FormatJSON:
		contentType = "application/feed+json; charset=utf-8"
	default:
		return "", "", fmt.Errorf("unsupported feed format: %s", format)
	}

	entries, err := f.store.ListRecentEntries(ctx, f.name, f.config.MaxItems)
	if err != nil {
		return "", "", err
	}

	feed := f.buildFeed(entries)

	var body string
	switch format {
	case FormatRSS:
		body, err = feed.ToRss()
	case FormatAtom:
		body, err = feed.ToAtom()
	case FormatJSON:
		body, err = feed.ToJSON()
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to render %s feed: %w", format, err)
	}

	f.rendered.Set(key, renderedFeed{body: body, contentType: contentType})
	return body, contentType, nil
}

func (f *Feed) buildFeed(entries []storage.FeedEntry) *feeds.Feed {
	items := make([]*feeds.Item, 0, len(entries))
	updated := time.Time{}

	for _, entry := range entries {
		created := entry.PublishedAt
		if created.IsZero() {
			created = entry.CreatedAt
		}
		if created.After(updated) {
			updated = created
		}

		item := &feeds.Item{
			Id:          entry.ID,
			Title:       entry.Title,
			Link:        &feeds.Link{Href: entry.Link},
			Description: entry.Description,
			Content:     entry.Content,
			Created:     created,
		}
		if entry.Author != "" {
			item.Author = &feeds.Author{Name: entry.Author}
		}
		if entry.ImageURL != "" {
			item.Enclosure = &feeds.Enclosure{Url: entry.ImageURL, Type: "image/*", Length: "0"}
		}
		items = append(items, item)
	}

	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	return &feeds.Feed{
		Title:       f.config.Title,
		Link:        &feeds.Link{Href: f.config.Link},
		Description: f.config.Description,
		Author:      &feeds.Author{Name: "herald"},
		Created:     updated,
		Updated:     updated,
		Items:       items,
	}
}

func toFeedEntry(post *types.ExtractedPost) storage.FeedEntry {
	title := post.Title
	if title == "" {
		title = utils.Truncate(utils.StripHTML(post.Summary, 0), 120)
	}
	if title == "" {
		title = post.Permalink
	}

	image := post.Thumbnail
	if image == "" && len(post.Media) > 0 {
		image = post.Media[0]
	}

	return storage.FeedEntry{
		ID:          post.Permalink,
		Title:       title,
		Link:        post.Permalink,
		Description: post.Summary,
		Content:     post.Body,
		Author:      post.Author,
		ImageURL:    image,
		PublishedAt: post.Published,
	}
}
