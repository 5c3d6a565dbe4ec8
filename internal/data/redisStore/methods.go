package redisStore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrConflict is returned when a watched key kept changing through every retry.
var ErrConflict = errors.New("concurrent update conflict")

const maxWatchRetries = 5

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) GetBytes(ctx context.Context, key string) ([]byte, error) {
	return s.client.Get(ctx, key).Bytes()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	return count > 0, err
}

// SetWithMeta writes a value and its metadata hash in one MULTI block.
func (s *Store) SetWithMeta(ctx context.Context, key string, value []byte, metaKey string, meta map[string]interface{}, expiration time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, expiration)
		pipe.Del(ctx, metaKey)
		pipe.HSet(ctx, metaKey, meta)
		if expiration > 0 {
			pipe.Expire(ctx, metaKey, expiration)
		}
		return nil
	})
	return err
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

// SetMember stores value under key and records member in the index set, atomically.
func (s *Store) SetMember(ctx context.Context, key string, value interface{}, indexKey string, member string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, 0)
		pipe.SAdd(ctx, indexKey, member)
		return nil
	})
	return err
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

func (s *Store) MGet(ctx context.Context, keys ...string) ([]interface{}, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return s.client.MGet(ctx, keys...).Result()
}

// SetIndexed stores value and adds member to a sorted index scored by score. Both keys get expiration.
func (s *Store) SetIndexed(ctx context.Context, key string, value interface{}, expiration time.Duration, indexKey string, member string, score float64) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, expiration)
		pipe.ZAdd(ctx, indexKey, redis.Z{Score: score, Member: member})
		pipe.Expire(ctx, indexKey, expiration)
		return nil
	})
	return err
}

// ZRevRange lists members from highest score down.
func (s *Store) ZRevRange(ctx context.Context, key string, start int64, stop int64) ([]string, error) {
	return s.client.ZRevRange(ctx, key, start, stop).Result()
}

func (s *Store) ZRem(ctx context.Context, key string, members ...interface{}) error {
	return s.client.ZRem(ctx, key, members...).Err()
}

// ListPushCapped prepends value and trims the list to maxLen entries.
func (s *Store) ListPushCapped(ctx context.Context, key string, value interface{}, maxLen int64, expiration time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, value)
		pipe.LTrim(ctx, key, 0, maxLen-1)
		if expiration > 0 {
			pipe.Expire(ctx, key, expiration)
		}
		return nil
	})
	return err
}

func (s *Store) ListRange(ctx context.Context, key string, start int64, stop int64) ([]string, error) {
	return s.client.LRange(ctx, key, start, stop).Result()
}

// UpdateWatched runs an optimistic read-modify-write on key under WATCH. fn sees the current
// value and returns the replacement and its TTL; an error from fn aborts without writing.
// A missing key surfaces as redis.Nil.
func (s *Store) UpdateWatched(ctx context.Context, key string, fn func(current string) (string, time.Duration, error)) error {
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, key).Result()
			if err != nil {
				return err
			}
			next, ttl, err := fn(current)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, ttl)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("Watched key changed, retrying", "key", key, "attempt", attempt+1)
			continue
		}
		return err
	}
	return ErrConflict
}

// AcquireLock is SET NX with a TTL; owner is stored so only the holder can release.
func (s *Store) AcquireLock(ctx context.Context, key string, owner string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, owner, ttl).Result()
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// ReleaseLock deletes key only while owner still holds it.
func (s *Store) ReleaseLock(ctx context.Context, key string, owner string) error {
	err := releaseScript.Run(ctx, s.client, []string{key}, owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
