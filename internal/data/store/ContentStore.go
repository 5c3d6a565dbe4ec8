package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/data/redisStore"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

const (
	contentKeyPrefix     = "content:"
	contentMetaKeyPrefix = "content:meta:"
)

type RedisContentStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

var _ commonModels.ContentStore = (*RedisContentStore)(nil)

func GetRedisContentStore(ctx context.Context, opts redisStore.Options) *RedisContentStore {
	s := redisStore.GetRedisStore(ctx, opts, config.RedisContentStore)
	if s == nil {
		return nil
	}
	return TestContentStore(s)
}

func TestContentStore(store *redisStore.Store) *RedisContentStore {
	return &RedisContentStore{store: store, logger: logger_i.NewLogger("redis_content_store")}
}

func (s *RedisContentStore) GetContent(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.store.GetBytes(ctx, contentKeyPrefix+key)
	if s.store.IsNil(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("reading content %s: %w", key, err)
	}
	return data, true, nil
}

func (s *RedisContentStore) PutContent(ctx context.Context, key string, data []byte, meta commonModels.ContentMeta) error {
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = time.Now().UTC()
	}
	fields := map[string]interface{}{
		"content_type": string(meta.ContentType),
		"size":         strconv.Itoa(len(data)),
		"updated_at":   meta.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := s.store.SetWithMeta(ctx, contentKeyPrefix+key, data, contentMetaKeyPrefix+key, fields, config.RedisContentTTL); err != nil {
		s.logger.FromContext(ctx).Error("Failed to cache content", "key", key, "error", err)
		return fmt.Errorf("writing content %s: %w", key, err)
	}
	return nil
}

// ContentMeta reads the metadata hash written alongside the content.
func (s *RedisContentStore) ContentMeta(ctx context.Context, key string) (commonModels.ContentMeta, bool, error) {
	var meta commonModels.ContentMeta
	fields, err := s.store.HGetAll(ctx, contentMetaKeyPrefix+key)
	if err != nil {
		return meta, false, err
	}
	if len(fields) == 0 {
		return meta, false, nil
	}
	meta.ContentType = commonModels.ContentType(fields["content_type"])
	meta.Size, _ = strconv.Atoi(fields["size"])
	meta.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return meta, true, nil
}

type InMemoryContentStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	meta map[string]commonModels.ContentMeta
}

var _ commonModels.ContentStore = (*InMemoryContentStore)(nil)

func InitInMemoryContentStore() *InMemoryContentStore {
	return &InMemoryContentStore{
		data: make(map[string][]byte),
		meta: make(map[string]commonModels.ContentMeta),
	}
}

func (s *InMemoryContentStore) GetContent(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (s *InMemoryContentStore) PutContent(ctx context.Context, key string, data []byte, meta commonModels.ContentMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = time.Now().UTC()
	}
	meta.Size = len(data)
	s.data[key] = append([]byte(nil), data...)
	s.meta[key] = meta
	return nil
}
