package executor

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/starkfull/node/core/felt"
	"github.com/starkfull/node/core/p2p"
)

// TraceCache memoizes Trace results by block hash and coalesces
// concurrent requests for the same block onto a single underlying
// computation.
type TraceCache struct {
	inner *lru.Cache[felt.Felt, []TraceEntry]
	group singleflight.Group
	exec  Executor
}

// NewTraceCache wraps exec with an LRU of the given capacity. capacity
// bounds memory, not correctness: any eviction just means a later
// identical request recomputes rather than hits.
func NewTraceCache(exec Executor, capacity int) (*TraceCache, error) {
	inner, err := lru.New[felt.Felt, []TraceEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &TraceCache{inner: inner, exec: exec}, nil
}

// Trace returns the cached trace for blockHash if present; otherwise
// it computes it via the wrapped Executor, with concurrent callers for
// the same blockHash sharing one computation (singleflight).
func (c *TraceCache) Trace(state ExecutionState, blockHash felt.Felt, txs []p2p.Transaction) ([]TraceEntry, error) {
	if cached, ok := c.inner.Get(blockHash); ok {
		return cached, nil
	}

	key := blockHash.Hex()
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under the singleflight key: another caller may have
		// populated the cache while we were queued behind the group.
		if cached, ok := c.inner.Get(blockHash); ok {
			return cached, nil
		}
		entries, err := c.exec.Trace(state, blockHash, txs)
		if err != nil {
			return nil, err
		}
		c.inner.Add(blockHash, entries)
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]TraceEntry), nil
}
