package lexicache_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZaguanLabs/lexicache"
	"github.com/ZaguanLabs/lexicache/history"
	"github.com/ZaguanLabs/lexicache/source"
	"github.com/ZaguanLabs/lexicache/storage"
)

// Integration tests using all real components

func openDictionary(t *testing.T, resolver *storage.Resolver, src source.Source) *lexicache.Dictionary {
	t.Helper()
	return lexicache.NewDictionary(lexicache.NewWordCacheStore(resolver, nil),
		lexicache.WithLookupSource(src),
		lexicache.WithStreamSource(src),
	)
}

func TestIntegration_LookupAndCacheHit(t *testing.T) {
	src := source.NewMockSource()
	dict := openDictionary(t, storage.NewResolver(nil), src)
	req := lexicache.LookupRequest{Term: "hello", Language: "en"}

	first, err := dict.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !strings.Contains(first.Content, "greeting") {
		t.Errorf("Expected greeting in content, got: %s", first.Content)
	}

	second, err := dict.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("Second lookup failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected cached version %s, got %s", first.ID, second.ID)
	}
	if src.CallCount() != 1 {
		t.Errorf("Expected 1 source call, got %d", src.CallCount())
	}
}

func TestIntegration_SQLitePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicache.db")
	req := lexicache.LookupRequest{Term: "world", Language: "en"}

	resolver := storage.NewResolver(storage.SQLiteOpener(path))
	dict := openDictionary(t, resolver, source.NewMockSource())
	v, err := dict.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if err := resolver.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// A fresh process sees the committed version without a source
	reopened := storage.NewResolver(storage.SQLiteOpener(path))
	defer reopened.Close()
	words := lexicache.NewWordCacheStore(reopened, nil)
	if !words.Durable() {
		t.Fatal("Expected the word cache to resolve a durable backend")
	}

	got, ok := lexicache.NewDictionary(words).Entry(req.TermKey(), "")
	if !ok {
		t.Fatalf("Expected %s to be cached after reopening", req.TermKey())
	}
	if got.ID != v.ID || got.Content != v.Content {
		t.Errorf("Expected %+v, got %+v", v, got)
	}
}

func TestIntegration_StreamThenLookupReturnsStreamed(t *testing.T) {
	src := source.NewMockSource()
	dict := openDictionary(t, storage.NewResolver(nil), src)
	req := lexicache.LookupRequest{Term: "hola", Language: "es"}

	if _, err := dict.Lookup(context.Background(), req); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	var fragments int
	streamed, err := dict.LookupStream(context.Background(), req, func(string, string) {
		fragments++
	})
	if err != nil {
		t.Fatalf("LookupStream failed: %v", err)
	}
	if fragments == 0 {
		t.Error("Expected fragments to be reported")
	}

	v, err := dict.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if v.ID != streamed.ID {
		t.Errorf("Expected streamed version %s to be active, got %s", streamed.ID, v.ID)
	}

	record, _ := dict.Record(req.TermKey())
	if len(record.Versions) != 2 {
		t.Errorf("Expected 2 versions, got %d", len(record.Versions))
	}
}

func TestIntegration_FailedStreamKeepsCache(t *testing.T) {
	src := source.NewMockSource()
	dict := openDictionary(t, storage.NewResolver(nil), src)
	req := lexicache.LookupRequest{Term: "hello", Language: "en"}

	before, err := dict.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	src.FailAfter = 1
	src.Err = errors.New("connection reset")
	_, err = dict.LookupStream(context.Background(), req, nil)

	var streamErr *lexicache.StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("Expected *StreamError, got %T: %v", err, err)
	}

	record, _ := dict.Record(req.TermKey())
	if len(record.Versions) != 1 || record.ActiveVersionID != before.ID {
		t.Errorf("Expected the cache untouched, got %+v", record)
	}
}

func TestIntegration_HistoryRecordsLookups(t *testing.T) {
	resolver := storage.NewResolver(nil)
	dict := openDictionary(t, resolver, source.NewMockSource())
	hist := history.NewStore(resolver)

	for _, term := range []string{"hello", "world", "hello"} {
		req := lexicache.LookupRequest{Term: term, Language: "en", Refresh: true}
		v, err := dict.Lookup(context.Background(), req)
		if err != nil {
			t.Fatalf("Lookup %q failed: %v", term, err)
		}
		hist.Record(req, v)
	}

	items := hist.Items()
	if len(items) != 2 {
		t.Fatalf("Expected 2 history items, got %d", len(items))
	}
	if items[0].Term != "hello" {
		t.Errorf("Expected most recent lookup first, got %q", items[0].Term)
	}
	if len(items[0].Versions) != 2 {
		t.Errorf("Expected 2 versions recorded for hello, got %d", len(items[0].Versions))
	}
}

func TestIntegration_ExportImport(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "backup.json")
	req := lexicache.LookupRequest{Term: "hello", Language: "en"}

	src := storage.NewResolver(storage.SQLiteOpener(filepath.Join(t.TempDir(), "src.db")))
	defer src.Close()
	v, err := openDictionary(t, src, source.NewMockSource()).Lookup(ctx, req)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if err := storage.NewExporter(src).ExportToFile(ctx, file, map[string]string{"app": "test"}); err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}

	dst := storage.NewResolver(storage.SQLiteOpener(filepath.Join(t.TempDir(), "dst.db")))
	defer dst.Close()
	result, err := storage.NewImporter(dst).ImportFromFile(ctx, file)
	if err != nil {
		t.Fatalf("ImportFromFile failed: %v", err)
	}
	if result.Imported != 1 || result.Failed != 0 {
		t.Errorf("Expected 1 imported, 0 failed; got %d, %d", result.Imported, result.Failed)
	}
	if result.Metadata["app"] != "test" {
		t.Errorf("Expected metadata to survive, got %v", result.Metadata)
	}

	got, ok := lexicache.NewDictionary(lexicache.NewWordCacheStore(dst, nil)).Entry(req.TermKey(), "")
	if !ok || got.ID != v.ID {
		t.Errorf("Expected imported version %s, got %+v (found=%v)", v.ID, got, ok)
	}
}

func TestIntegration_RetryableSource(t *testing.T) {
	// Create a source that fails twice then succeeds
	inner := &flakySource{failCount: 2, MockSource: source.NewMockSource()}
	retryable := lexicache.NewRetryableSource(inner, inner, lexicache.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1, // 1 nanosecond for fast tests
		MaxDelay:   10,
	})

	dict := lexicache.NewDictionary(lexicache.NewWordCacheStore(storage.NewResolver(nil), nil),
		lexicache.WithLookupSource(retryable))

	v, err := dict.Lookup(context.Background(), lexicache.LookupRequest{Term: "hello", Language: "en"})
	if err != nil {
		t.Fatalf("Lookup failed after retries: %v", err)
	}
	if v.ID == "" {
		t.Error("Expected a committed version")
	}
	if inner.callCount != 3 {
		t.Errorf("Expected 3 calls (2 failures + 1 success), got %d", inner.callCount)
	}
}

// Helper: flaky source for retry tests
type flakySource struct {
	*source.MockSource
	failCount int
	callCount int
}

func (s *flakySource) Lookup(ctx context.Context, req lexicache.LookupRequest) (*lexicache.LookupResult, error) {
	s.callCount++
	if s.callCount <= s.failCount {
		return nil, &lexicache.SourceError{Message: "temporary failure", Retryable: true}
	}
	return s.MockSource.Lookup(ctx, req)
}
