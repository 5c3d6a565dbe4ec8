package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/data/redisStore"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

var errIncompleteSource = errors.New("source needs id, user and project")

func checkSource(source *commonModels.Source) error {
	if source.Id == "" || source.UserId == "" || source.ProjectId == "" {
		return errIncompleteSource
	}
	now := time.Now().UTC()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	if source.UpdatedAt.IsZero() {
		source.UpdatedAt = now
	}
	if source.ContentKey == "" {
		source.ContentKey = source.Id
	}
	return nil
}

type RedisSourceCatalog struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

var _ commonModels.SourceCatalog = (*RedisSourceCatalog)(nil)

func GetRedisSourceCatalog(ctx context.Context, opts redisStore.Options) *RedisSourceCatalog {
	s := redisStore.GetRedisStore(ctx, opts, config.RedisCatalogStore)
	if s == nil {
		return nil
	}
	return TestSourceCatalog(s)
}

func TestSourceCatalog(store *redisStore.Store) *RedisSourceCatalog {
	return &RedisSourceCatalog{store: store, logger: logger_i.NewLogger("redis_source_catalog")}
}

func projectSourcesKey(userId string, projectId string) string {
	return "sources:" + userId + ":" + projectId
}

func sourceKey(userId string, projectId string, sourceId string) string {
	return "source:" + userId + ":" + projectId + ":" + sourceId
}

// UpsertSource keeps the original CreatedAt when a source is replaced.
func (c *RedisSourceCatalog) UpsertSource(ctx context.Context, source commonModels.Source) error {
	if err := checkSource(&source); err != nil {
		return err
	}
	key := sourceKey(source.UserId, source.ProjectId, source.Id)
	if existing, err := c.store.Get(ctx, key); err == nil {
		var prev commonModels.Source
		if json.Unmarshal([]byte(existing), &prev) == nil && !prev.CreatedAt.IsZero() {
			source.CreatedAt = prev.CreatedAt
		}
	} else if !c.store.IsNil(err) {
		return fmt.Errorf("reading source %s: %w", source.Id, err)
	}

	data, err := json.Marshal(source)
	if err != nil {
		return err
	}
	if err := c.store.SetMember(ctx, key, data, projectSourcesKey(source.UserId, source.ProjectId), source.Id); err != nil {
		c.logger.FromContext(ctx).Error("Failed to save source", "sourceId", source.Id, "error", err)
		return fmt.Errorf("saving source %s: %w", source.Id, err)
	}
	return nil
}

func (c *RedisSourceCatalog) ListSources(ctx context.Context, userId string, projectId string) ([]commonModels.Source, error) {
	ids, err := c.store.SMembers(ctx, projectSourcesKey(userId, projectId))
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sourceKey(userId, projectId, id)
	}
	values, err := c.store.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("reading sources: %w", err)
	}

	out := make([]commonModels.Source, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			c.logger.FromContext(ctx).Warn("Source indexed but missing", "sourceId", ids[i])
			continue
		}
		var source commonModels.Source
		if err := json.Unmarshal([]byte(raw), &source); err != nil {
			c.logger.FromContext(ctx).Warn("Skipping unreadable source", "sourceId", ids[i], "error", err)
			continue
		}
		out = append(out, source)
	}
	sortSources(out)
	return out, nil
}

type InMemorySourceCatalog struct {
	mu      sync.RWMutex
	sources map[string]map[string]commonModels.Source
}

var _ commonModels.SourceCatalog = (*InMemorySourceCatalog)(nil)

func InitInMemorySourceCatalog() *InMemorySourceCatalog {
	return &InMemorySourceCatalog{sources: make(map[string]map[string]commonModels.Source)}
}

func (c *InMemorySourceCatalog) UpsertSource(ctx context.Context, source commonModels.Source) error {
	if err := checkSource(&source); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := projectSourcesKey(source.UserId, source.ProjectId)
	project, ok := c.sources[key]
	if !ok {
		project = make(map[string]commonModels.Source)
		c.sources[key] = project
	}
	if prev, ok := project[source.Id]; ok {
		source.CreatedAt = prev.CreatedAt
	}
	project[source.Id] = source
	return nil
}

func (c *InMemorySourceCatalog) ListSources(ctx context.Context, userId string, projectId string) ([]commonModels.Source, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	project := c.sources[projectSourcesKey(userId, projectId)]
	if len(project) == 0 {
		return nil, nil
	}
	out := make([]commonModels.Source, 0, len(project))
	for _, s := range project {
		out = append(out, s)
	}
	sortSources(out)
	return out, nil
}
