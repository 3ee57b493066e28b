package trackers

import (
	"context"
	"fmt"
	"log/slog"

	"herald/internal/storage"
	"herald/internal/types"
)

// SQLiteTracker stores permalinks in the shared database, scoped by
// namespace so several trackers can share one file.
type SQLiteTracker struct {
	name      string
	namespace string
	store     storage.SeenStore
	logger    *slog.Logger
}

// NewSQLiteTracker returns a tracker whose seen-set only grows.
func NewSQLiteTracker(name, namespace string, store storage.SeenStore, logger *slog.Logger) *SQLiteTracker {
	if namespace == "" {
		namespace = name
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteTracker{
		name:      name,
		namespace: namespace,
		store:     store,
		logger:    logger.With("tracker", name),
	}
}

func (t *SQLiteTracker) Name() string {
	return t.name
}

func (t *SQLiteTracker) GetUnseen(ctx context.Context, posts []*types.ExtractedPost) ([]*types.ExtractedPost, error) {
	seen, err := t.store.FilterSeen(ctx, t.namespace, permalinksOf(posts))
	if err != nil {
		return nil, fmt.Errorf("failed to query seen posts: %w", err)
	}

	return types.FirstUnseen(posts, func(permalink string) bool {
		return seen[permalink]
	}), nil
}

func (t *SQLiteTracker) SetSeen(ctx context.Context, posts []*types.ExtractedPost) error {
	if err := t.store.MarkSeen(ctx, t.namespace, permalinksOf(posts)); err != nil {
		return fmt.Errorf("failed to mark posts as seen: %w", err)
	}

	t.logger.Debug("Committed seen posts", "namespace", t.namespace, "count", len(posts))
	return nil
}

func permalinksOf(posts []*types.ExtractedPost) []string {
	permalinks := make([]string, 0, len(posts))
	for _, post := range posts {
		permalinks = append(permalinks, post.Permalink)
	}
	return permalinks
}
