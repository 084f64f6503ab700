package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const seedBatch = 500

// RedisStore keeps codes in a redis SET. SADD makes the duplicate check and
// the insert a single atomic step across server instances.
type RedisStore struct {
	client *redis.Client
	key    string
}

// OpenRedis connects to redis and optionally seeds the set from cfg.Path.
func OpenRedis(ctx context.Context, cfg Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	slog.Info("Connected to redis", "addr", cfg.RedisAddr, "key", cfg.RedisKey)

	s := &RedisStore{client: client, key: cfg.RedisKey}
	if cfg.SeedFromFile {
		if err := s.seed(ctx, cfg.Path); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) seed(ctx context.Context, path string) error {
	codes, _, err := readCodes(path)
	if err != nil {
		return err
	}
	var added int64
	for start := 0; start < len(codes); start += seedBatch {
		end := min(start+seedBatch, len(codes))
		members := make([]interface{}, 0, end-start)
		for _, c := range codes[start:end] {
			members = append(members, c)
		}
		n, err := s.client.SAdd(ctx, s.key, members...).Result()
		if err != nil {
			return fmt.Errorf("seed redis: %w", err)
		}
		added += n
	}
	slog.Info("Seeded redis from file", "path", path, "read", len(codes), "added", added)
	return nil
}

// Add implements Store.
func (s *RedisStore) Add(ctx context.Context, code string) (Status, error) {
	if err := checkCode(code); err != nil {
		return StatusError, err
	}
	n, err := s.client.SAdd(ctx, s.key, code).Result()
	if err != nil {
		return StatusError, fmt.Errorf("redis sadd: %w", err)
	}
	if n == 0 {
		return StatusDuplicate, nil
	}
	return StatusSaved, nil
}

// Contains implements Store.
func (s *RedisStore) Contains(ctx context.Context, code string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key, code).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

// Codes returns the stored codes sorted, since redis sets are unordered.
func (s *RedisStore) Codes(ctx context.Context) ([]string, error) {
	codes, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(codes)
	return codes, nil
}

// Len implements Store.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis scard: %w", err)
	}
	return int(n), nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
