package trackers

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"herald/internal/types"
)

// RedisTracker keeps the seen-set in a single redis SET.
type RedisTracker struct {
	name   string
	client redis.UniversalClient
	key    string
}

func NewRedisTracker(name string, client redis.UniversalClient, prefix string) *RedisTracker {
	if prefix == "" {
		prefix = "herald:" + name
	}
	return &RedisTracker{
		name:   name,
		client: client,
		key:    prefix + ":seen",
	}
}

func (t *RedisTracker) Name() string {
	return t.name
}

func (t *RedisTracker) Key() string {
	return t.key
}

func (t *RedisTracker) GetUnseen(ctx context.Context, posts []*types.ExtractedPost) ([]*types.ExtractedPost, error) {
	if len(posts) == 0 {
		return []*types.ExtractedPost{}, nil
	}

	members := make([]interface{}, 0, len(posts))
	for _, post := range posts {
		members = append(members, post.Permalink)
	}

	found, err := t.client.SMIsMember(ctx, t.key, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query seen set %s: %w", t.key, err)
	}

	seen := make(map[string]bool, len(posts))
	for i, ok := range found {
		if ok {
			seen[posts[i].Permalink] = true
		}
	}

	return types.FirstUnseen(posts, func(permalink string) bool {
		return seen[permalink]
	}), nil
}

func (t *RedisTracker) SetSeen(ctx context.Context, posts []*types.ExtractedPost) error {
	if len(posts) == 0 {
		return nil
	}

	members := make([]interface{}, 0, len(posts))
	for _, post := range posts {
		members = append(members, post.Permalink)
	}

	if err := t.client.SAdd(ctx, t.key, members...).Err(); err != nil {
		return fmt.Errorf("failed to add to seen set %s: %w", t.key, err)
	}
	return nil
}
