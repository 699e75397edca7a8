package domain

import (
	"slices"
	"strconv"
	"strings"
)

// ChainSet is an immutable set of chain IDs the session accepts.
type ChainSet struct {
	ids []uint64
}

// NewChainSet builds a set from ids, dropping duplicates.
func NewChainSet(ids ...uint64) ChainSet {
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return ChainSet{ids: out}
}

func (c ChainSet) Contains(id uint64) bool {
	return slices.Contains(c.ids, id)
}

// IDs returns the chain IDs in configuration order.
func (c ChainSet) IDs() []uint64 {
	return slices.Clone(c.ids)
}

func (c ChainSet) Len() int {
	return len(c.ids)
}

func (c ChainSet) String() string {
	parts := make([]string, len(c.ids))
	for i, id := range c.ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ", ")
}
