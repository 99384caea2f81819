package executor

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/dmagro/novax/internal/caching"
	"github.com/dmagro/novax/internal/codec"
)

// CachedQuery serves queries from a cache, populating it from an inner
// executor. The raw return data is cached, so one entry serves every shape.
type CachedQuery struct {
	inner QueryExecutor
	cache caching.Strategy
	id    string
}

var _ QueryExecutor = (*CachedQuery)(nil)

// NewCachedQuery wraps inner. id names the backend in cache fingerprints,
// usually the gateway URL, so several backends can share one cache.
func NewCachedQuery(inner QueryExecutor, cache caching.Strategy, id string) *CachedQuery {
	return &CachedQuery{inner: inner, cache: cache, id: id}
}

// ExecuteQuery implements QueryExecutor.
func (c *CachedQuery) ExecuteQuery(ctx context.Context, req *QueryRequest, shape codec.Type) (any, error) {
	parts, err := caching.GetOrSet(ctx, c.cache, c.Fingerprint(req), func(ctx context.Context) ([][]byte, error) {
		res, err := c.inner.ExecuteQuery(ctx, req, codec.Raw)
		if err != nil {
			return nil, err
		}
		parts, ok := res.([][]byte)
		if !ok {
			return nil, fmt.Errorf("executor: raw query returned %T", res)
		}
		return parts, nil
	})
	if err != nil {
		return nil, err
	}
	return DecodeParts(parts, shape)
}

// Fingerprint is the cache key of req.
func (c *CachedQuery) Fingerprint(req *QueryRequest) uint64 {
	parts := []string{c.id, req.Contract.Hex(), req.Function, valueString(req.EgldValue), req.Caller.Hex()}
	parts = append(parts, strconv.Itoa(len(req.Arguments)))
	for _, a := range req.Arguments {
		parts = append(parts, hex.EncodeToString(a))
	}
	for _, tr := range req.EsdtTransfers {
		parts = append(parts, tr.Identifier, strconv.FormatUint(tr.Nonce, 10), valueString(tr.Amount))
	}
	return caching.Fingerprint(parts...)
}
