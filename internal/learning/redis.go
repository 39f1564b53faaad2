package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"smartquote/internal"
	"smartquote/internal/config"
	"smartquote/internal/logging"
	"smartquote/internal/storage"
)

const DefaultRedisHash = "smartquote:learned"

// RedisStore keeps all mappings in one hash so every write is a single
// atomic HSET shared by all processes.
type RedisStore struct {
	rdb  *redis.Client
	hash string
}

func NewRedisStore(rdb *redis.Client, hash string) *RedisStore {
	if hash == "" {
		hash = DefaultRedisHash
	}
	return &RedisStore{rdb: rdb, hash: hash}
}

// DialRedis connects and pings, failing fast on a bad address.
func DialRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *RedisStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Learn(ctx context.Context, original, canonical string) error {
	key, canonical, err := mappingKey(original, canonical)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.hash, key, canonical).Err()
}

// List reads the whole hash. Redis keeps no write time, so UpdatedAt is empty.
func (s *RedisStore) List(ctx context.Context) ([]internal.LearnedMapping, error) {
	all, err := s.rdb.HGetAll(ctx, s.hash).Result()
	if err != nil {
		return nil, err
	}
	return sortedMappings(all), nil
}

// Open selects the backend: Redis when REDIS_ADDR is set, sqlite otherwise.
// The returned close func releases the Redis connection.
func Open(cfg config.Config, db *storage.DB, logger *zap.Logger) (Store, func() error, error) {
	logger = logging.OrNop(logger)
	if cfg.RedisAddr == "" {
		logger.Debug("learning store: sqlite")
		return NewSQLiteStore(db), func() error { return nil }, nil
	}
	rdb, err := DialRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("learning store: redis", zap.String("addr", cfg.RedisAddr))
	return NewRedisStore(rdb, DefaultRedisHash), rdb.Close, nil
}
