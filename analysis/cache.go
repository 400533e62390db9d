package analysis

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultCacheSize bounds the number of distinct code hashes kept analyzed
// in memory at once.
const defaultCacheSize = 1024

// cacheKey pairs a code hash with its CodeKind: runtime code and init code
// share a hash space but validate under different rules (EIP-3541 applies
// only to runtime code), so they cannot share a cache slot.
type cacheKey struct {
	hash common.Hash
	kind CodeKind
}

// Cache memoizes Analyze by code hash, so repeated calls into the same
// deployed contract across many transactions pay the analysis cost once.
type Cache struct {
	lru *lru.Cache[cacheKey, *Analysis]
}

// NewCache builds a content-addressed analysis cache with room for size
// distinct contracts; size <= 0 selects defaultCacheSize.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[cacheKey, *Analysis](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Get returns the cached Analysis for code, analyzing and inserting it on a
// miss. The cache key is the Keccak256 hash of code together with kind, so
// it is correct to share one Cache across unrelated callers: identical code
// analyzed under the same kind always produces identical analysis.
func (c *Cache) Get(code []byte, kind CodeKind) (*Analysis, error) {
	key := cacheKey{hash: crypto.Keccak256Hash(code), kind: kind}
	if a, ok := c.lru.Get(key); ok {
		return a, nil
	}
	a, err := Analyze(code, kind)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, a)
	return a, nil
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int { return c.lru.Len() }

// Purge evicts every cached entry.
func (c *Cache) Purge() { c.lru.Purge() }
