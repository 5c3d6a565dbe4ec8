package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/data/redisStore"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

const queryLogPrefix = "querylog:"

type RedisQueryLogStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

var _ analysisModel.QueryLogStore = (*RedisQueryLogStore)(nil)

func GetRedisQueryLogStore(ctx context.Context, opts redisStore.Options) *RedisQueryLogStore {
	s := redisStore.GetRedisStore(ctx, opts, config.RedisQueryLogStore)
	if s == nil {
		return nil
	}
	return TestQueryLogStore(s)
}

func TestQueryLogStore(store *redisStore.Store) *RedisQueryLogStore {
	return &RedisQueryLogStore{store: store, logger: logger_i.NewLogger("redis_query_log")}
}

func (s *RedisQueryLogStore) SaveQuery(ctx context.Context, record analysisModel.QueryRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	err = s.store.ListPushCapped(ctx, queryLogPrefix+record.UserId, data, config.RedisQueryLogLength, config.RedisQueryLogTTL)
	if err != nil {
		s.logger.FromContext(ctx).Error("Failed to save query record", "queryId", record.Id, "error", err)
		return fmt.Errorf("saving query record: %w", err)
	}
	return nil
}

// RecentQueries returns a user's records newest first.
func (s *RedisQueryLogStore) RecentQueries(ctx context.Context, userId string, limit int) ([]analysisModel.QueryRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := s.store.ListRange(ctx, queryLogPrefix+userId, 0, stop)
	if err != nil {
		return nil, fmt.Errorf("reading query log: %w", err)
	}
	out := make([]analysisModel.QueryRecord, 0, len(raw))
	for _, item := range raw {
		var record analysisModel.QueryRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			s.logger.FromContext(ctx).Warn("Skipping unreadable query record", "error", err)
			continue
		}
		out = append(out, record)
	}
	return out, nil
}
