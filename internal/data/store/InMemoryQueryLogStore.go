package store

import (
	"context"
	"sync"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
)

type InMemoryQueryLogStore struct {
	mu      sync.RWMutex
	records map[string][]analysisModel.QueryRecord
}

var _ analysisModel.QueryLogStore = (*InMemoryQueryLogStore)(nil)

func InitQueryLogStore() *InMemoryQueryLogStore {
	return &InMemoryQueryLogStore{records: make(map[string][]analysisModel.QueryRecord)}
}

func (s *InMemoryQueryLogStore) SaveQuery(ctx context.Context, record analysisModel.QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.records[record.UserId], record)
	if len(list) > config.RedisQueryLogLength {
		list = list[len(list)-config.RedisQueryLogLength:]
	}
	s.records[record.UserId] = list
	return nil
}

// RecentQueries returns a user's records newest first.
func (s *InMemoryQueryLogStore) RecentQueries(ctx context.Context, userId string, limit int) ([]analysisModel.QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.records[userId]
	out := make([]analysisModel.QueryRecord, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, list[i])
	}
	return out, nil
}
