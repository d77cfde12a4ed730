package source

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ZaguanLabs/lexicache"
)

// MockSource is a deterministic source for tests and offline use.
type MockSource struct {
	// Entries maps a lowercased term to its content. Unknown terms get a
	// placeholder entry.
	Entries map[string]string

	// Fragments, when set, are streamed instead of splitting the entry content.
	Fragments []string

	// FailAfter makes Stream return Err after that many fragments. Negative
	// disables it.
	FailAfter int

	// Err is returned by Lookup when FailLookup is set, and by Stream at FailAfter.
	Err        error
	FailLookup bool

	// Delay is waited before each streamed fragment.
	Delay time.Duration

	// Now stamps returned versions.
	Now func() time.Time

	mu          sync.Mutex
	calls       int
	lastRequest *lexicache.LookupRequest
}

// NewMockSource creates a new mock source with a few default entries.
func NewMockSource() *MockSource {
	return &MockSource{
		Entries: map[string]string{
			"hello": "<p><b>hello</b> <i>interjection</i>. A greeting.</p>",
			"world": "<p><b>world</b> <i>noun</i>. The earth and everyone on it.</p>",
			"hola":  "<p><b>hola</b> <i>interjección</i>. Saludo.</p>",
		},
		FailAfter: -1,
		Now:       time.Now,
	}
}

// Lookup returns the entry for req.Term as a single version.
func (m *MockSource) Lookup(ctx context.Context, req lexicache.LookupRequest) (*lexicache.LookupResult, error) {
	m.record(req)
	if m.FailLookup {
		return nil, m.err()
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, &lexicache.SourceError{Message: "generating version id", Cause: err}
	}
	v := lexicache.WordVersion{
		ID:        id.String(),
		CreatedAt: lexicache.FormatTimestamp(m.now()),
		Content:   m.content(req.Term),
	}
	return &lexicache.LookupResult{
		Versions: []lexicache.WordVersion{v},
		Metadata: lexicache.RecordMetadata{LatestVersionID: v.ID},
	}, nil
}

// Stream emits the entry for req.Term word by word, or Fragments when set.
func (m *MockSource) Stream(ctx context.Context, req lexicache.LookupRequest, out chan<- string) error {
	m.record(req)

	fragments := m.Fragments
	if fragments == nil {
		fragments = strings.SplitAfter(m.content(req.Term), " ")
	}

	for i, fragment := range fragments {
		if m.FailAfter >= 0 && i == m.FailAfter {
			return m.err()
		}
		if m.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.Delay):
			}
		}
		if err := lexicache.Emit(ctx, out, fragment); err != nil {
			return err
		}
	}
	if m.FailAfter >= len(fragments) {
		return m.err()
	}
	return nil
}

// CallCount returns the number of Lookup and Stream calls.
func (m *MockSource) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent request, or nil.
func (m *MockSource) LastRequest() *lexicache.LookupRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// Reset resets the call count and last request.
func (m *MockSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
	m.lastRequest = nil
}

func (m *MockSource) record(req lexicache.LookupRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastRequest = &req
}

func (m *MockSource) content(term string) string {
	key := strings.ToLower(strings.TrimSpace(term))
	if c, ok := m.Entries[key]; ok {
		return c
	}
	return fmt.Sprintf("<p>[%s]</p>", key)
}

func (m *MockSource) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *MockSource) err() error {
	if m.Err != nil {
		return m.Err
	}
	return &lexicache.SourceError{Message: "mock failure"}
}
