package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"radiochild/odatatable"
)

// app holds what every command shares once configuration is loaded.
type app struct {
	cfg     *Config
	logger  *zap.SugaredLogger
	cache   odatatable.Cache
	client  *odatatable.QueryClient
	fetcher *odatatable.HTTPFetcher
	binder  *odatatable.Binder
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func newCache(ctx context.Context, cfg *Config) (odatatable.Cache, error) {
	cacheCfg := odatatable.CacheConfig{DefaultTTL: cfg.Cache.DataTTL, Prefix: cfg.Cache.Prefix}
	if cfg.Cache.Backend == "redis" {
		return odatatable.NewRedisCacheWithConfig(ctx, odatatable.RedisConfig{
			Addr:        cfg.Cache.Redis.Addr,
			Password:    cfg.Cache.Redis.Password,
			DB:          cfg.Cache.Redis.DB,
			CacheConfig: cacheCfg,
		})
	}
	return odatatable.NewMemoryCacheWithConfig(cacheCfg), nil
}

func newApp(ctx context.Context, cfg *Config, logger *zap.SugaredLogger) (*app, error) {
	cache, err := newCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := odatatable.NewQueryClient(cache, logger)

	httpCfg := odatatable.DefaultHTTPFetcherConfig()
	httpCfg.RetryMax = cfg.HTTP.RetryMax
	httpCfg.Timeout = cfg.HTTP.Timeout
	httpCfg.Logger = logger
	fetcher := odatatable.NewHTTPFetcher(httpCfg)

	metadata := odatatable.BindMetadataQuery(odatatable.MetadataOptions{
		Fetcher:   fetcher.WithAccept(odatatable.AcceptXML),
		StaleTime: cfg.Cache.MetadataTTL,
		Client:    client,
		Logger:    logger,
	})

	binder := odatatable.NewBinder(odatatable.SourceOptions{
		FilterFunc: odatatable.NewSpecFilterFunc(logger),
		Fetcher:    fetcher,
		Client:     client,
		StaleTime:  cfg.Cache.DataTTL,
		Metadata:   metadata,
		Logger:     logger,
	})

	return &app{cfg: cfg, logger: logger, cache: cache, client: client, fetcher: fetcher, binder: binder}, nil
}

// bind creates a source for the table flags, with the configured query
// defaults underneath.
func (a *app) bind(tf *tableFlags) (*odatatable.Source, error) {
	if tf.specFile != "" {
		spec, err := odatatable.ReadTableSpec(tf.specFile)
		if err != nil {
			return nil, err
		}
		odatatable.ShowTableSpec(spec, a.logger)
		tf.applySpec(spec)
	}
	if tf.baseAddress == "" {
		return nil, fmt.Errorf("--url: %w", odatatable.ErrURLRequired)
	}

	initial := odatatable.DefaultTableState()
	initial.Pagination.PageSize = a.cfg.Table.PageSize
	depth := a.cfg.Query.NavigationDepth
	if tf.depth > 0 {
		depth = tf.depth
	}
	return a.binder.Bind(odatatable.SourceOptions{
		BaseAddress:       tf.baseAddress,
		EntityType:        tf.entityType,
		MetadataURL:       tf.metadataURL,
		IncludeNavigation: odatatable.Bool(a.cfg.Query.IncludeNavigation && !tf.noNavigation),
		SelectAll:         a.cfg.Query.SelectAll || tf.selectAll,
		NavigationDepth:   depth,
		InitialState:      &initial,
	}), nil
}

// load binds and loads a source, then applies the table flags to its state.
func (a *app) load(ctx context.Context, tf *tableFlags) (*odatatable.Source, error) {
	source, err := a.bind(tf)
	if err != nil {
		return nil, err
	}
	if err := source.Load(ctx); err != nil {
		return nil, err
	}
	var stateErr error
	source.UpdateState(func(st odatatable.TableState) odatatable.TableState {
		next, err := tf.apply(st, odatatable.ColumnIDs(source.Columns()))
		if err != nil {
			stateErr = err
			return st
		}
		return next
	})
	if stateErr != nil {
		return nil, stateErr
	}
	return source, nil
}

func (a *app) Close() error {
	a.logger.Sync()
	if closer, ok := a.cache.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
