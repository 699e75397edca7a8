package balancecache

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/portfolio-optimizer/internal/apperror"
)

// Dial configures a Redis client from url and verifies connectivity.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Redis shares block-pinned balances between instances. Values are stored
// as base-10 wei strings.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// keyspace separates balances from anything else sharing the prefix.
const keyspace = "balance:"

// NewRedis wraps client. Keys are stored as prefix + "balance:" + key.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) redisKey(key string) string {
	return r.prefix + keyspace + key
}

func (r *Redis) Get(ctx context.Context, key string) (*big.Int, bool, error) {
	raw, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperror.New(apperror.CodeBalanceCacheFailed,
			apperror.WithCause(err), apperror.WithContext("get "+key))
	}

	wei, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		// A corrupt entry is a miss; the next fetch overwrites it.
		return nil, false, nil
	}
	return wei, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, wei *big.Int) error {
	if err := r.client.Set(ctx, r.redisKey(key), wei.String(), r.ttl).Err(); err != nil {
		return apperror.New(apperror.CodeBalanceCacheFailed,
			apperror.WithCause(err), apperror.WithContext("set "+key))
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close is a no-op; the client belongs to the application container.
func (r *Redis) Close() error { return nil }
