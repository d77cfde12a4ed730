package lexicache

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StreamSource is the interface for backends answering a lookup
// incrementally. Stream sends content fragments on out and returns nil once
// the content is complete. It must stop sending when ctx is done and must not
// close out.
type StreamSource interface {
	Stream(ctx context.Context, req LookupRequest, out chan<- string) error
}

// Emit sends fragment on out unless ctx is done first.
func Emit(ctx context.Context, out chan<- string, fragment string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- fragment:
		return nil
	}
}

// FragmentFunc receives each fragment together with everything accumulated so far.
type FragmentFunc func(fragment, buffer string)

// completedStream is produced only when a stream closes normally. It is the
// only value a streamed version can be committed from.
type completedStream struct {
	content   string
	fragments int
}

// LookupStream streams a lookup from the StreamSource, reporting progress to
// onFragment. When the stream completes, its accumulated content is committed
// as one new version, which becomes active. If the stream fails or ctx is
// cancelled first, nothing is committed and a *StreamError is returned.
//
// Concurrent streams for the same term are not serialized; the last one to
// complete commits last.
func (d *Dictionary) LookupStream(ctx context.Context, req LookupRequest, onFragment FragmentFunc) (WordVersion, error) {
	if err := req.validate(); err != nil {
		return WordVersion{}, err
	}
	if d.stream == nil {
		return WordVersion{}, ErrNoSource
	}
	key := req.TermKey()

	d.begin(key)
	defer d.end(key)

	done, err := consumeStream(ctx, d.stream, req, onFragment)
	if err != nil {
		d.logger.Warn("stream aborted, nothing committed",
			zap.String("term_key", key),
			zap.Int("fragments", err.Fragments),
			zap.Error(err.Cause))
		return WordVersion{}, err
	}

	return d.commitStream(key, done)
}

// consumeStream drains src until it finishes. The returned completedStream is
// non-nil only when the source returned nil and ctx was never cancelled.
func consumeStream(ctx context.Context, src StreamSource, req LookupRequest, onFragment FragmentFunc) (*completedStream, *StreamError) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan string)
	result := make(chan error, 1)
	go func() {
		defer close(out)
		result <- src.Stream(ctx, req, out)
	}()

	var buf strings.Builder
	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil, &StreamError{TermKey: req.TermKey(), Fragments: n, Cause: ctx.Err()}
		case fragment, ok := <-out:
			if !ok {
				err := <-result
				if err == nil {
					err = ctx.Err()
				}
				if err != nil {
					return nil, &StreamError{TermKey: req.TermKey(), Fragments: n, Cause: err}
				}
				return &completedStream{content: buf.String(), fragments: n}, nil
			}
			n++
			buf.WriteString(fragment)
			if onFragment != nil {
				onFragment(fragment, buf.String())
			}
		}
	}
}

// commitStream turns a completed stream into a version and commits it.
func (d *Dictionary) commitStream(termKey string, done *completedStream) (WordVersion, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return WordVersion{}, fmt.Errorf("generating version id: %w", err)
	}

	v := WordVersion{
		ID:        id.String(),
		CreatedAt: FormatTimestamp(d.now()),
		Content:   done.content,
	}
	d.commit(termKey, []WordVersion{v}, SetOptions{PreferredID: v.ID})

	d.logger.Debug("stream committed",
		zap.String("term_key", termKey),
		zap.String("version", v.ID),
		zap.Int("fragments", done.fragments))
	return v, nil
}
