package lexicache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/ZaguanLabs/lexicache/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeLookup answers every lookup with a fresh version.
type fakeLookup struct {
	mu    sync.Mutex
	calls int
	err   error
	meta  RecordMetadata
	empty bool
}

func (f *fakeLookup) Lookup(ctx context.Context, req LookupRequest) (*LookupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return &LookupResult{}, nil
	}
	id := req.Term + "-" + string(rune('0'+f.calls))
	return &LookupResult{
		Versions: []WordVersion{{
			ID:        id,
			CreatedAt: FormatTimestamp(time.Date(2024, 1, f.calls, 0, 0, 0, 0, time.UTC)),
			Content:   "entry for " + req.Term,
		}},
		Metadata: f.meta,
	}, nil
}

func (f *fakeLookup) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestDictionary(t *testing.T, opts ...DictionaryOption) (*Dictionary, *storage.Resolver) {
	t.Helper()
	resolver := storage.NewResolver(nil)
	return NewDictionary(NewWordCacheStore(resolver, nil), opts...), resolver
}

func TestDictionary_LookupMissThenHit(t *testing.T) {
	src := &fakeLookup{}
	d, _ := newTestDictionary(t, WithLookupSource(src))
	req := LookupRequest{Term: "Hello", Language: "en"}

	first, err := d.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if first.ID != "Hello-1" {
		t.Errorf("Expected Hello-1, got %q", first.ID)
	}

	second, err := d.Lookup(context.Background(), LookupRequest{Term: " hello ", Language: "EN"})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected cache hit %q, got %q", first.ID, second.ID)
	}
	if src.count() != 1 {
		t.Errorf("Expected 1 source call, got %d", src.count())
	}
}

func TestDictionary_LookupRefresh(t *testing.T) {
	src := &fakeLookup{}
	d, _ := newTestDictionary(t, WithLookupSource(src))
	req := LookupRequest{Term: "hello", Language: "en"}

	if _, err := d.Lookup(context.Background(), req); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	req.Refresh = true
	v, err := d.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if v.ID != "hello-2" {
		t.Errorf("Expected the new version to be active, got %q", v.ID)
	}

	record, _ := d.Record(req.TermKey())
	if len(record.Versions) != 2 {
		t.Errorf("Expected 2 versions, got %d", len(record.Versions))
	}
}

func TestDictionary_LookupMetadataHint(t *testing.T) {
	src := &fakeLookup{meta: RecordMetadata{ActiveVersionID: "hello-1"}}
	d, _ := newTestDictionary(t, WithLookupSource(src))
	req := LookupRequest{Term: "hello", Language: "en"}

	d.Lookup(context.Background(), req)
	req.Refresh = true
	v, err := d.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if v.ID != "hello-1" {
		t.Errorf("Expected the source's active hint to win, got %q", v.ID)
	}
}

func TestDictionary_LookupErrors(t *testing.T) {
	boom := &SourceError{Message: "down"}

	tests := []struct {
		name string
		opts []DictionaryOption
		req  LookupRequest
		want error
	}{
		{"empty term", []DictionaryOption{WithLookupSource(&fakeLookup{})}, LookupRequest{Term: "  ", Language: "en"}, ErrEmptyTerm},
		{"no source", nil, LookupRequest{Term: "a", Language: "en"}, ErrNoSource},
		{"source failure", []DictionaryOption{WithLookupSource(&fakeLookup{err: boom})}, LookupRequest{Term: "a", Language: "en"}, boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDictionary(t, tt.opts...)
			_, err := d.Lookup(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if len(d.Keys()) != 0 {
				t.Errorf("Nothing should be cached, got %v", d.Keys())
			}
		})
	}
}

func TestDictionary_LookupMissingLanguage(t *testing.T) {
	d, _ := newTestDictionary(t, WithLookupSource(&fakeLookup{}))

	_, err := d.Lookup(context.Background(), LookupRequest{Term: "a"})
	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) {
		t.Errorf("Expected LookupError, got %v", err)
	}
}

func TestDictionary_LookupNoUsableVersions(t *testing.T) {
	d, _ := newTestDictionary(t, WithLookupSource(&fakeLookup{empty: true}))

	_, err := d.Lookup(context.Background(), LookupRequest{Term: "a", Language: "en"})
	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("Expected SourceError, got %v", err)
	}
	if len(d.Keys()) != 0 {
		t.Error("No record should be created")
	}
}

// nilLookup answers without a result or an error.
type nilLookup struct{}

func (nilLookup) Lookup(context.Context, LookupRequest) (*LookupResult, error) {
	return nil, nil
}

func TestDictionary_LookupNilResult(t *testing.T) {
	d, _ := newTestDictionary(t, WithLookupSource(nilLookup{}))

	_, err := d.Lookup(context.Background(), LookupRequest{Term: "a", Language: "en"})
	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("Expected SourceError, got %v", err)
	}
	if srcErr.Message != "source returned no result" {
		t.Errorf("Unexpected message: %q", srcErr.Message)
	}
	if d.Loading("a|en|mono") {
		t.Error("Lookup should no longer be in flight")
	}
	if len(d.Keys()) != 0 {
		t.Error("No record should be created")
	}
}

func TestDictionary_Persists(t *testing.T) {
	d, resolver := newTestDictionary(t, WithLookupSource(&fakeLookup{}))
	req := LookupRequest{Term: "hello", Language: "en"}

	v, err := d.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	reopened := NewDictionary(NewWordCacheStore(resolver, nil))
	got, ok := reopened.Entry(req.TermKey(), "")
	if !ok {
		t.Fatal("Entry should survive a new store instance")
	}
	if diff := cmp.Diff(v, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
	if reopened.Loading(req.TermKey()) {
		t.Error("Inflight state must not be persisted")
	}
}

func TestDictionary_SetActiveAndRemove(t *testing.T) {
	d, _ := newTestDictionary(t, WithLookupSource(&fakeLookup{}))
	req := LookupRequest{Term: "hello", Language: "en"}
	key := req.TermKey()

	d.Lookup(context.Background(), req)
	req.Refresh = true
	d.Lookup(context.Background(), req)

	active, ok := d.SetActiveVersion(key, "hello-1")
	if !ok || active != "hello-1" {
		t.Errorf("SetActiveVersion = (%q, %v), want (hello-1, true)", active, ok)
	}

	if _, ok := d.SetActiveVersion("bye|en|mono", "x"); ok {
		t.Error("Unknown key should report false")
	}

	if !d.RemoveVersions(key, "hello-1") {
		t.Fatal("Record should survive while a version remains")
	}
	if v, _ := d.Entry(key, ""); v.ID != "hello-2" {
		t.Errorf("Expected hello-2 to become active, got %q", v.ID)
	}

	if d.RemoveVersions(key, "hello-2") {
		t.Error("Record should be gone after removing the last version")
	}
	if _, ok := d.Record(key); ok {
		t.Error("Record should not exist")
	}
}

func TestDictionary_ClearAndKeys(t *testing.T) {
	d, _ := newTestDictionary(t, WithLookupSource(&fakeLookup{}))

	for _, term := range []string{"b", "a", "c"} {
		d.Lookup(context.Background(), LookupRequest{Term: term, Language: "en"})
	}

	want := []string{"a|en|mono", "b|en|mono", "c|en|mono"}
	if diff := cmp.Diff(want, d.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	d.Clear()
	if len(d.Keys()) != 0 {
		t.Errorf("Expected empty cache, got %v", d.Keys())
	}
}

// blockingLookup waits until released, so Loading can be observed.
type blockingLookup struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingLookup) Lookup(ctx context.Context, req LookupRequest) (*LookupResult, error) {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &LookupResult{Versions: []WordVersion{{ID: "v1"}}}, nil
}

func TestDictionary_Loading(t *testing.T) {
	src := &blockingLookup{started: make(chan struct{}), release: make(chan struct{})}
	d, _ := newTestDictionary(t, WithLookupSource(src))
	req := LookupRequest{Term: "hello", Language: "en"}

	done := make(chan error)
	go func() {
		_, err := d.Lookup(context.Background(), req)
		done <- err
	}()

	select {
	case <-src.started:
	case <-time.After(time.Second):
		t.Fatal("lookup never started")
	}
	if !d.Loading(req.TermKey()) {
		t.Error("Expected Loading while the lookup runs")
	}

	close(src.release)
	if err := <-done; err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if d.Loading(req.TermKey()) {
		t.Error("Loading should clear after the lookup")
	}
}
