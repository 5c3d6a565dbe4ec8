package redisStore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/akolanti/GoAnalyze/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

var (
	instances = make(map[int]*Store)
	mu        sync.RWMutex
	once      sync.Once
)

type Store struct {
	client *redis.Client
	Type   int
	logger *logger_i.Logger
}

// Options is the connection part shared by every logical DB.
type Options struct {
	Addr     string
	Password string
}

// GetRedisStore returns the shared store for one logical DB, or nil when Redis is offline.
func GetRedisStore(ctx context.Context, opts Options, dbType int) *Store {
	mu.RLock()
	instance, exists := instances[dbType]
	mu.RUnlock()

	if exists {
		return instance
	}

	mu.Lock()
	defer mu.Unlock()

	if instance, exists = instances[dbType]; exists {
		return instance
	}
	return createNewStore(ctx, opts, dbType)
}

func closeRedisStores(ctx context.Context) {
	<-ctx.Done()
	logger := logger_i.NewLogger("redis_store")
	logger.Info("Closing Redis Stores")
	mu.Lock()
	defer mu.Unlock()
	for dbType, store := range instances {
		if err := store.client.Close(); err != nil {
			logger.Error("Error closing redis client", "db", dbType, "error", err)
		}
		delete(instances, dbType)
	}
	logger.Info("Redis Store Closed successfully")
}

func createNewStore(ctx context.Context, opts Options, dbType int) *Store {
	logger := logger_i.NewLogger("redis_store").With("db", strconv.Itoa(dbType))
	newClient := redis.NewClient(&redis.Options{
		Addr:                  opts.Addr,
		Password:              opts.Password,
		DB:                    dbType,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := newClient.Ping(pingCtx).Err(); err != nil {
		logger.Error("Redis is offline", "addr", opts.Addr, "error", err)
		_ = newClient.Close()
		return nil
	}

	logger.Info("Redis store init successfully")

	newStore := &Store{
		client: newClient,
		Type:   dbType,
		logger: logger,
	}

	instances[dbType] = newStore
	once.Do(func() {
		go closeRedisStores(ctx)
	})
	return newStore
}

// NewTestStore wraps an existing client, e.g. one pointed at miniredis.
func NewTestStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		logger: logger_i.NewLogger("redis_store_test"),
	}
}
