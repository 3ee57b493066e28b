// Package trackers implements the seen-set backends used for deduplication.
package trackers

import (
	"context"
	"sync"

	"herald/internal/types"
)

// MemoryTracker keeps the seen-set in process memory. History is lost on
// restart.
type MemoryTracker struct {
	name string
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewMemoryTracker(name string) *MemoryTracker {
	return &MemoryTracker{
		name: name,
		seen: make(map[string]struct{}),
	}
}

func (t *MemoryTracker) Name() string {
	return t.name
}

func (t *MemoryTracker) GetUnseen(ctx context.Context, posts []*types.ExtractedPost) ([]*types.ExtractedPost, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return types.FirstUnseen(posts, func(permalink string) bool {
		_, ok := t.seen[permalink]
		return ok
	}), nil
}

func (t *MemoryTracker) SetSeen(ctx context.Context, posts []*types.ExtractedPost) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, post := range posts {
		t.seen[post.Permalink] = struct{}{}
	}
	return nil
}
