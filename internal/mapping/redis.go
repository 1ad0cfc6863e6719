package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/lgulliver/git-lfs-walrus/pkg/config"
)

const redisKeyPrefix = "walrus:mapping:"

// RedisStore keeps the mapping in Redis so that everyone cloning a shared
// repository resolves the same blob IDs without passing the JSON document
// around.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg *config.MappingConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Debug().Str("addr", cfg.RedisAddr()).Msg("redis mapping store initialized")
	return &RedisStore{client: client}, nil
}

// Get returns the blob ID recorded for contentHash, or ErrNotFound
func (s *RedisStore) Get(ctx context.Context, contentHash string) (string, error) {
	blobID, err := s.client.Get(ctx, redisKeyPrefix+contentHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query mapping: %w", err)
	}
	return blobID, nil
}

// Put records the blob ID for contentHash. Entries never expire: the blob
// may outlive any session.
func (s *RedisStore) Put(ctx context.Context, contentHash, blobID string) error {
	if err := s.client.Set(ctx, redisKeyPrefix+contentHash, blobID, 0).Err(); err != nil {
		return fmt.Errorf("failed to record mapping: %w", err)
	}
	return nil
}

// All returns every recorded mapping
func (s *RedisStore) All(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}

	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		blobID, err := s.client.Get(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read mapping %s: %w", key, err)
		}
		out[key[len(redisKeyPrefix):]] = blobID
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan mappings: %w", err)
	}
	return out, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
