// Package redis implements cache.Store on Redis.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/cache"
)

// Config holds connection settings. Zero timeouts use the go-redis defaults.
type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// scanBatch is the COUNT hint used when sweeping a prefix.
const scanBatch = 200

// Store implements cache.Store.
type Store struct {
	client goredis.UniversalClient
}

// New creates a store with its own client. It does not connect; use Ping.
func New(cfg Config) *Store {
	return NewFromClient(goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}))
}

func NewFromClient(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return apperror.Transport("cache.ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, apperror.Transport("cache.get", err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperror.Transport("cache.set", err)
	}
	return nil
}

func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, apperror.Transport("cache.setnx", err)
	}
	return ok, nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return apperror.Transport("cache.delete", err)
	}
	return nil
}

// DeleteByPrefix walks the keyspace with SCAN and deletes matches in batches,
// so it never blocks the server the way KEYS would.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return apperror.Transport("cache.delete_prefix", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return apperror.Transport("cache.delete_prefix", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *Store) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, apperror.Transport("cache.incr", err)
	}
	return incr.Val(), nil
}
