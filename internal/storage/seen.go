package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// sqlite caps bound parameters per statement.
const queryChunkSize = 500

type seenStore struct {
	db *sql.DB
}

func newSeenStore(db *sql.DB) SeenStore {
	return &seenStore{db: db}
}

func (s *seenStore) FilterSeen(ctx context.Context, namespace string, permalinks []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(permalinks))

	for start := 0; start < len(permalinks); start += queryChunkSize {
		end := min(start+queryChunkSize, len(permalinks))
		chunk := permalinks[start:end]

		query := fmt.Sprintf(
			`SELECT permalink FROM seen_posts WHERE namespace = ? AND permalink IN (%s)`,
			placeholders(len(chunk)),
		)

		args := make([]any, 0, len(chunk)+1)
		args = append(args, namespace)
		for _, p := range chunk {
			args = append(args, p)
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query seen posts: %w", err)
		}

		for rows.Next() {
			var permalink string
			if err := rows.Scan(&permalink); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan seen post: %w", err)
			}
			seen[permalink] = true
		}

		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("rows iteration error: %w", err)
		}
		rows.Close()
	}

	return seen, nil
}

func (s *seenStore) MarkSeen(ctx context.Context, namespace string, permalinks []string) error {
	if len(permalinks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO seen_posts (namespace, permalink, seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT(namespace, permalink) DO NOTHING
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, permalink := range permalinks {
		if _, err := stmt.ExecContext(ctx, namespace, permalink, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to mark %s as seen: %w", permalink, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seen posts: %w", err)
	}

	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
