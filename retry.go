package lexicache

import (
	"context"
	"errors"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts
	BaseDelay  time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum delay between retries
}

// DefaultRetryConfig returns sensible defaults for retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// RetryFunc is a function that can be retried.
type RetryFunc[T any] func() (T, error)

// WithRetry executes a function with exponential backoff retry.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn RetryFunc[T]) (T, error) {
	return retry(ctx, cfg, fn, IsRetryable)
}

// retry runs fn until it succeeds, shouldRetry rejects its error, or the
// attempts run out.
func retry[T any](ctx context.Context, cfg RetryConfig, fn RetryFunc[T], shouldRetry func(error) bool) (T, error) {
	var lastErr error
	var zero T

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return zero, err
		}

		if attempt < cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff(cfg, attempt)):
			}
		}
	}

	return zero, lastErr
}

func backoff(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay * time.Duration(1<<attempt)
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var sourceErr *SourceError
	if errors.As(err, &sourceErr) {
		return sourceErr.Retryable
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return false
}

// RetryableSource wraps lookup and stream sources with retry logic.
// Either source may be nil.
//
// A stream is retried only while it has produced no fragment. Once a fragment
// has been passed on, the caller has already seen partial content and a
// failure is returned as is.
type RetryableSource struct {
	lookup LookupSource
	stream StreamSource
	config RetryConfig
}

// NewRetryableSource creates a new source with retry logic.
func NewRetryableSource(lookup LookupSource, stream StreamSource, cfg RetryConfig) *RetryableSource {
	return &RetryableSource{
		lookup: lookup,
		stream: stream,
		config: cfg,
	}
}

// Lookup implements LookupSource with retry logic.
func (s *RetryableSource) Lookup(ctx context.Context, req LookupRequest) (*LookupResult, error) {
	if s.lookup == nil {
		return nil, ErrNoSource
	}
	return WithRetry(ctx, s.config, func() (*LookupResult, error) {
		return s.lookup.Lookup(ctx, req)
	})
}

// Stream implements StreamSource, retrying attempts that fail before their
// first fragment.
func (s *RetryableSource) Stream(ctx context.Context, req LookupRequest, out chan<- string) error {
	if s.stream == nil {
		return ErrNoSource
	}

	var forwarded int
	_, err := retry(ctx, s.config, func() (struct{}, error) {
		n, err := forwardStream(ctx, s.stream, req, out)
		forwarded += n
		return struct{}{}, err
	}, func(err error) bool {
		return forwarded == 0 && IsRetryable(err)
	})
	return err
}

// forwardStream runs one attempt of src, passing its fragments on to out, and
// reports how many were passed on.
func forwardStream(ctx context.Context, src StreamSource, req LookupRequest, out chan<- string) (int, error) {
	in := make(chan string)
	done := make(chan struct{})

	var n int
	go func() {
		defer close(done)
		for fragment := range in {
			// Keep draining after ctx is done so src never blocks.
			if Emit(ctx, out, fragment) == nil {
				n++
			}
		}
	}()

	err := src.Stream(ctx, req, in)
	close(in)
	<-done
	return n, err
}

// Verify RetryableSource implements both source interfaces
var (
	_ LookupSource = (*RetryableSource)(nil)
	_ StreamSource = (*RetryableSource)(nil)
)
