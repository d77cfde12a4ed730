package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ZaguanLabs/lexicache"
	"github.com/ZaguanLabs/lexicache/config"
	"github.com/ZaguanLabs/lexicache/history"
	"github.com/ZaguanLabs/lexicache/prefs"
	"github.com/ZaguanLabs/lexicache/source"
	"github.com/ZaguanLabs/lexicache/storage"
	"github.com/ZaguanLabs/lexicache/store"
)

// app wires the stores and sources for one CLI invocation.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	resolver  *storage.Resolver
	words     *lexicache.WordCacheStore
	dict      *lexicache.Dictionary
	history   *history.Store
	favorites *prefs.FavoritesStore
	session   *prefs.SessionStore
	voice     *prefs.VoiceStore
	stdout    io.Writer
	stderr    io.Writer
}

// newSource builds the configured source. It is a variable so tests can
// substitute their own.
var newSource = func(cfg *config.Config) (source.Source, error) {
	switch cfg.Source.Provider {
	case config.ProviderMock:
		return source.NewMockSource(), nil
	default:
		if cfg.Source.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required (OPENAI_API_KEY env or source.api_key)")
		}
		return source.NewOpenAISource(source.OpenAIConfig{
			APIKey:         cfg.Source.APIKey,
			Model:          cfg.Source.Model,
			Temperature:    cfg.Source.Temperature,
			BaseURL:        cfg.Source.BaseURL,
			ReaderLanguage: cfg.Source.ReaderLanguage,
		}), nil
	}
}

func newLogger(cfg config.LoggingConfig, w io.Writer, quiet bool) (*zap.Logger, error) {
	if quiet {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), level)), nil
}

func newResolver(cfg config.StorageConfig, logger *zap.Logger) (*storage.Resolver, error) {
	opts := []storage.ResolverOption{storage.WithResolverLogger(logger)}

	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewResolver(nil, opts...), nil
	case config.BackendRedis:
		backend, err := storage.NewRedisBackend(storage.RedisConfig{
			URL:       cfg.RedisURL,
			TTL:       int(cfg.RedisTTL.Seconds()),
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring redis: %w", err)
		}
		return storage.NewResolver(func(string) (storage.Backend, error) { return backend, nil }, opts...), nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			logger.Warn("creating database directory failed", zap.String("path", cfg.Path), zap.Error(err))
		}
		return storage.NewResolver(storage.SQLiteOpener(cfg.Path), opts...), nil
	}
}

func newApp(cfg *config.Config, stdout, stderr io.Writer, quiet bool) (*app, error) {
	logger, err := newLogger(cfg.Logging, stderr, quiet)
	if err != nil {
		return nil, err
	}

	resolver, err := newResolver(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	words := lexicache.NewWordCacheStore(resolver, logger,
		store.WithOpTimeout[lexicache.WordCacheState](cfg.Storage.OpTimeout))

	hist := history.NewStore(resolver,
		history.WithLogger(logger),
		history.WithDefaultPolicy(cfg.History.RetentionPolicy))

	return &app{
		cfg:       cfg,
		logger:    logger,
		resolver:  resolver,
		words:     words,
		dict:      lexicache.NewDictionary(words, lexicache.WithLogger(logger)),
		history:   hist,
		favorites: prefs.NewFavoritesStore(resolver, logger),
		session:   prefs.NewSessionStore(resolver, logger),
		voice:     prefs.NewVoiceStore(resolver, logger),
		stdout:    stdout,
		stderr:    stderr,
	}, nil
}

// withSources attaches the configured source, wrapped with rate limiting and
// retries, to the dictionary.
func (a *app) withSources() error {
	src, err := newSource(a.cfg)
	if err != nil {
		return err
	}

	var lookup lexicache.LookupSource = src
	var stream lexicache.StreamSource = src
	if a.cfg.RateLimit.RequestsPerMinute > 0 {
		limited := lexicache.NewRateLimitedSource(src, src, lexicache.RateLimitConfig{
			RequestsPerMinute: a.cfg.RateLimit.RequestsPerMinute,
			BurstSize:         a.cfg.RateLimit.BurstSize,
		})
		lookup, stream = limited, limited
	}
	retryable := lexicache.NewRetryableSource(lookup, stream, lexicache.RetryConfig{
		MaxRetries: a.cfg.Retry.MaxRetries,
		BaseDelay:  a.cfg.Retry.BaseDelay,
		MaxDelay:   a.cfg.Retry.MaxDelay,
	})

	a.dict = lexicache.NewDictionary(a.words,
		lexicache.WithLookupSource(retryable),
		lexicache.WithStreamSource(retryable),
		lexicache.WithLogger(a.logger))
	return nil
}

func (a *app) close() {
	if err := a.resolver.Close(); err != nil {
		a.logger.Warn("closing storage failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
