// Package balancecache stores block-pinned balances. A balance read at a
// fixed block never changes, so entries only expire to bound memory.
package balancecache

import (
	"context"
	"math/big"
	"time"

	"github.com/fd1az/portfolio-optimizer/internal/cache"
)

// Memory is a process-local balance cache on go-cache.
type Memory struct {
	store *cache.Cache[string, *big.Int]
	ttl   time.Duration
}

// NewMemory creates a cache whose entries live for ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		store: cache.New[string, *big.Int](time.Minute),
		ttl:   ttl,
	}
}

func (m *Memory) Get(ctx context.Context, key string) (*big.Int, bool, error) {
	wei, ok := m.store.Get(ctx, key)
	if !ok {
		return nil, false, nil
	}
	return new(big.Int).Set(wei), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, wei *big.Int) error {
	m.store.Set(ctx, key, new(big.Int).Set(wei), m.ttl)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Len returns the number of cached balances.
func (m *Memory) Len() int { return m.store.Len() }

func (m *Memory) Close() error {
	m.store.Close()
	return nil
}
