package lexicache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultPrefetchLimit bounds concurrent source lookups during Prefetch.
const DefaultPrefetchLimit = 4

// PrefetchResult summarizes a Prefetch call.
type PrefetchResult struct {
	Cached  int // requests already answered by the cache
	Fetched int // requests committed from the source
	Failed  int // requests whose lookup failed
}

// Prefetch warms the cache for several requests at once. Requests sharing a
// termKey are looked up once. Cache hits are skipped unless the request asks
// for a refresh. At most limit lookups run concurrently; limit <= 0 uses
// DefaultPrefetchLimit.
//
// A failed lookup does not stop the others. The returned error joins every
// failure.
func (d *Dictionary) Prefetch(ctx context.Context, reqs []LookupRequest, limit int) (PrefetchResult, error) {
	var result PrefetchResult
	if limit <= 0 {
		limit = DefaultPrefetchLimit
	}

	var invalid []error
	seen := make(map[string]bool, len(reqs))
	var misses []LookupRequest
	entries := d.words.GetState().Entries
	for _, req := range reqs {
		if err := req.validate(); err != nil {
			invalid = append(invalid, err)
			continue
		}
		key := req.TermKey()
		if seen[key] {
			continue
		}
		seen[key] = true

		if _, ok := GetEntry(entries, key, ""); ok && !req.Refresh {
			result.Cached++
			continue
		}
		misses = append(misses, req)
	}
	result.Failed = len(invalid)

	if len(misses) > 0 && d.lookup == nil {
		result.Failed += len(misses)
		return result, errors.Join(append(invalid, ErrNoSource)...)
	}

	var mu sync.Mutex
	errs := invalid

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, req := range misses {
		g.Go(func() error {
			// Force the fetch: the hit check above already ran.
			req.Refresh = true
			_, err := d.Lookup(ctx, req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				errs = append(errs, fmt.Errorf("prefetch %s: %w", req.TermKey(), err))
				return nil
			}
			result.Fetched++
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Debug("prefetch finished",
		zap.Int("cached", result.Cached),
		zap.Int("fetched", result.Fetched),
		zap.Int("failed", result.Failed))

	return result, errors.Join(errs...)
}
