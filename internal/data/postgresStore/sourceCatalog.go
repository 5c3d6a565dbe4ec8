package postgresStore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
)

var _ commonModels.SourceCatalog = (*SourceCatalog)(nil)

type SourceCatalog struct {
	db *DB
}

func NewSourceCatalog(db *DB) *SourceCatalog {
	return &SourceCatalog{db: db}
}

// UpsertSource keeps created_at from the first insert.
func (c *SourceCatalog) UpsertSource(ctx context.Context, s commonModels.Source) error {
	if s.Id == "" || s.UserId == "" || s.ProjectId == "" {
		return errors.New("source needs id, user and project")
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	if s.ContentKey == "" {
		s.ContentKey = s.Id
	}
	_, err := c.db.ExecContext(ctx, `INSERT INTO sources
		(id, user_id, project_id, title, content_type, content_key, word_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, project_id, id) DO UPDATE SET
			title = EXCLUDED.title,
			content_type = EXCLUDED.content_type,
			content_key = EXCLUDED.content_key,
			word_count = EXCLUDED.word_count,
			updated_at = EXCLUDED.updated_at`,
		s.Id, s.UserId, s.ProjectId, s.Title, string(s.ContentType), s.ContentKey, s.WordCount, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving source %s: %w", s.Id, err)
	}
	return nil
}

func (c *SourceCatalog) ListSources(ctx context.Context, userId string, projectId string) ([]commonModels.Source, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, user_id, project_id, title, content_type, content_key,
			word_count, created_at, updated_at
		FROM sources WHERE user_id = $1 AND project_id = $2
		ORDER BY created_at, id`, userId, projectId)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var out []commonModels.Source
	for rows.Next() {
		var s commonModels.Source
		if err := rows.Scan(&s.Id, &s.UserId, &s.ProjectId, &s.Title, &s.ContentType, &s.ContentKey,
			&s.WordCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
