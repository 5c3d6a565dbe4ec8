package postgresStore

import (
	"context"
	"fmt"

	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
)

var _ analysisModel.QueryLogStore = (*QueryLogStore)(nil)

type QueryLogStore struct {
	db *DB
}

func NewQueryLogStore(db *DB) *QueryLogStore {
	return &QueryLogStore{db: db}
}

func (s *QueryLogStore) SaveQuery(ctx context.Context, r analysisModel.QueryRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO query_records
		(id, user_id, project_id, trace_id, query, source_count, result_count, prompt_tokens,
		 output_tokens, duration_ms, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`,
		r.Id, r.UserId, r.ProjectId, r.TraceId, r.Query, r.SourceCount, r.ResultCount, r.PromptTokens,
		r.OutputTokens, r.DurationMs, string(r.Status), r.Error, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving query record: %w", err)
	}
	return nil
}

// RecentQueries returns a user's records newest first.
func (s *QueryLogStore) RecentQueries(ctx context.Context, userId string, limit int) ([]analysisModel.QueryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, project_id, trace_id, query, source_count,
			result_count, prompt_tokens, output_tokens, duration_ms, status, error, created_at
		FROM query_records WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userId, limit)
	if err != nil {
		return nil, fmt.Errorf("reading query log: %w", err)
	}
	defer rows.Close()

	var out []analysisModel.QueryRecord
	for rows.Next() {
		var r analysisModel.QueryRecord
		if err := rows.Scan(&r.Id, &r.UserId, &r.ProjectId, &r.TraceId, &r.Query, &r.SourceCount,
			&r.ResultCount, &r.PromptTokens, &r.OutputTokens, &r.DurationMs, &r.Status, &r.Error, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
