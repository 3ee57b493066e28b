package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type feedStore struct {
	db *sql.DB
}

func newFeedStore(db *sql.DB) FeedStore {
	return &feedStore{db: db}
}

func (s *feedStore) InsertEntry(ctx context.Context, feed string, entry FeedEntry) error {
	query := `
		INSERT INTO feed_entries (feed, id, title, link, description, content, author, image_url, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed, id) DO NOTHING
	`

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	publishedAt := sql.NullTime{Valid: !entry.PublishedAt.IsZero(), Time: entry.PublishedAt}
	imageURL := sql.NullString{Valid: entry.ImageURL != "", String: entry.ImageURL}

	_, err := s.db.ExecContext(ctx, query,
		feed, entry.ID, entry.Title, entry.Link, entry.Description, entry.Content, entry.Author,
		imageURL, publishedAt, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feed entry: %w", err)
	}

	return nil
}

func (s *feedStore) ListRecentEntries(ctx context.Context, feed string, limit int) ([]FeedEntry, error) {
	query := `
		SELECT id, title, link, description, content, author, image_url, published_at, created_at
		FROM feed_entries
		WHERE feed = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, feed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]FeedEntry, 0, limit)
	for rows.Next() {
		var entry FeedEntry
		var publishedAt sql.NullTime
		var imageURL sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.Title,
			&entry.Link,
			&entry.Description,
			&entry.Content,
			&entry.Author,
			&imageURL,
			&publishedAt,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		if publishedAt.Valid {
			entry.PublishedAt = publishedAt.Time
		}

		if imageURL.Valid {
			entry.ImageURL = imageURL.String
		}

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

func (s *feedStore) DeleteOlderThan(ctx context.Context, feed string, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)

	result, err := s.db.ExecContext(ctx, `DELETE FROM feed_entries WHERE feed = ? AND created_at < ?`, feed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old entries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted entries: %w", err)
	}
	return rows, nil
}
