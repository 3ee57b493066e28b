package storage

import (
	"context"
	"time"
)

// SeenStore persists delivered permalinks, partitioned by namespace.
type SeenStore interface {
	FilterSeen(ctx context.Context, namespace string, permalinks []string) (map[string]bool, error)
	MarkSeen(ctx context.Context, namespace string, permalinks []string) error
}

type FeedEntry struct {
	ID          string
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	ImageURL    string
	PublishedAt time.Time
	CreatedAt   time.Time
}

type FeedStore interface {
	InsertEntry(ctx context.Context, feed string, entry FeedEntry) error
	ListRecentEntries(ctx context.Context, feed string, limit int) ([]FeedEntry, error)
	DeleteOlderThan(ctx context.Context, feed string, age time.Duration) (int64, error)
}
