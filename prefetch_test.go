package lexicache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// slowLookup tracks how many lookups run at once.
type slowLookup struct {
	delay   time.Duration
	active  int64
	maxSeen int64
	calls   int64
	fail    map[string]bool
}

func (s *slowLookup) Lookup(ctx context.Context, req LookupRequest) (*LookupResult, error) {
	atomic.AddInt64(&s.calls, 1)
	n := atomic.AddInt64(&s.active, 1)
	defer atomic.AddInt64(&s.active, -1)
	for {
		m := atomic.LoadInt64(&s.maxSeen)
		if n <= m || atomic.CompareAndSwapInt64(&s.maxSeen, m, n) {
			break
		}
	}

	time.Sleep(s.delay)
	if s.fail[req.Term] {
		return nil, &SourceError{Message: "unavailable"}
	}
	return &LookupResult{Versions: []WordVersion{{ID: req.Term + "-v1"}}}, nil
}

func TestPrefetch_Basic(t *testing.T) {
	src := &slowLookup{}
	d, _ := newTestDictionary(t, WithLookupSource(src))
	d.Lookup(context.Background(), LookupRequest{Term: "cached", Language: "en"})

	reqs := []LookupRequest{
		{Term: "cached", Language: "en"},
		{Term: "one", Language: "en"},
		{Term: "two", Language: "en"},
		{Term: "One", Language: "en"}, // same termKey as "one"
	}

	result, err := d.Prefetch(context.Background(), reqs, 2)
	if err != nil {
		t.Fatalf("Prefetch failed: %v", err)
	}

	if result.Cached != 1 || result.Fetched != 2 || result.Failed != 0 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if got := atomic.LoadInt64(&src.calls); got != 3 {
		t.Errorf("Expected 3 source calls including the seed lookup, got %d", got)
	}
	for _, key := range []string{"one|en|mono", "two|en|mono"} {
		if _, ok := d.Entry(key, ""); !ok {
			t.Errorf("Expected %s to be cached", key)
		}
	}
}

func TestPrefetch_RespectsLimit(t *testing.T) {
	src := &slowLookup{delay: 20 * time.Millisecond}
	d, _ := newTestDictionary(t, WithLookupSource(src))

	var reqs []LookupRequest
	for _, term := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		reqs = append(reqs, LookupRequest{Term: term, Language: "en"})
	}

	if _, err := d.Prefetch(context.Background(), reqs, 3); err != nil {
		t.Fatalf("Prefetch failed: %v", err)
	}

	if got := atomic.LoadInt64(&src.maxSeen); got > 3 {
		t.Errorf("Expected at most 3 concurrent lookups, saw %d", got)
	}
	if len(d.Keys()) != len(reqs) {
		t.Errorf("Expected %d cached keys, got %d", len(reqs), len(d.Keys()))
	}
}

func TestPrefetch_CollectsFailures(t *testing.T) {
	src := &slowLookup{fail: map[string]bool{"bad": true}}
	d, _ := newTestDictionary(t, WithLookupSource(src))

	result, err := d.Prefetch(context.Background(), []LookupRequest{
		{Term: "good", Language: "en"},
		{Term: "bad", Language: "en"},
		{Term: "", Language: "en"},
	}, 0)

	if err == nil {
		t.Fatal("Expected joined error")
	}
	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Errorf("Expected the source error to be joined, got %v", err)
	}
	if !errors.Is(err, ErrEmptyTerm) {
		t.Errorf("Expected the invalid request to be reported, got %v", err)
	}
	if result.Fetched != 1 || result.Failed != 2 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if _, ok := d.Entry("good|en|mono", ""); !ok {
		t.Error("Successful lookups should be committed")
	}
}

func TestPrefetch_NoSource(t *testing.T) {
	d, _ := newTestDictionary(t)

	_, err := d.Prefetch(context.Background(), []LookupRequest{{Term: "a", Language: "en"}}, 1)
	if !errors.Is(err, ErrNoSource) {
		t.Errorf("Expected ErrNoSource, got %v", err)
	}
}
