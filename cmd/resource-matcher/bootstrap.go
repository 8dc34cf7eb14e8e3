package main

import (
	"context"
	"fmt"
	"time"

	"resource-matcher/internal/common/aws"
	"resource-matcher/internal/common/config"
	"resource-matcher/internal/common/database"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/common/observability"
	"resource-matcher/internal/matching"
	"resource-matcher/internal/matching/assembler"
	"resource-matcher/internal/matching/cache"
	"resource-matcher/internal/matching/events"
	"resource-matcher/internal/matching/gateway"
	"resource-matcher/internal/matching/narration"
	"resource-matcher/internal/matching/orchestrator"
	"resource-matcher/internal/matching/registry"
	"resource-matcher/internal/matching/scorer"
)

// app holds everything a transport needs to serve matches.
type app struct {
	cfg     *config.Config
	logger  logger.Logger
	obs     *observability.Observability
	catalog gateway.Gateway
	service *matching.Service
	closers []func() error
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// buildApp wires catalog, registry, scorer, orchestrator, cache, narration,
// events and the match service from cfg.
func buildApp(ctx context.Context, cfg *config.Config, log logger.Logger, withObservability bool) (*app, error) {
	a := &app{cfg: cfg, logger: log}

	if withObservability {
		var opts []observability.Option
		if cfg.Tracing.Enabled && cfg.Tracing.JaegerEndpoint != "" {
			opts = append(opts, observability.WithJaegerEndpoint(cfg.Tracing.JaegerEndpoint))
		}
		a.obs = observability.New(cfg.App.Name, opts...)
	}

	catalog, err := a.buildGateway(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.catalog = catalog

	var overrides []registry.Entry
	if cfg.Matching.RegistryPath != "" {
		overrides, err = registry.LoadOverrides(cfg.Matching.RegistryPath)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	reg, err := registry.New(overrides...)
	if err != nil {
		a.Close()
		return nil, err
	}

	var matcher orchestrator.Matcher = orchestrator.New(reg, catalog, scorer.New(), log,
		orchestrator.WithDefaultCategories(cfg.Matching.DefaultCategories),
		orchestrator.WithObservability(a.obs),
	)

	if cfg.Matching.CacheEnabled {
		rdb, err := database.NewRedis(ctx, cfg.Database.Redis)
		if err != nil {
			// The cache is optional; matching proceeds uncached.
			log.Warn("redis unavailable, match cache disabled", map[string]interface{}{"error": err.Error()})
		} else {
			a.closers = append(a.closers, rdb.Close)
			matcher = cache.New(matcher, rdb, cfg.Matching.CacheTTLDuration(), log)
			log.Info("match cache enabled", map[string]interface{}{"ttl": cfg.Matching.CacheTTLDuration().String()})
		}
	}

	narrator, err := a.buildNarrator(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []matching.Option{
		matching.WithObservability(a.obs),
		matching.WithRequestTimeout(config.GetDuration(cfg.Matching.RequestTimeout)),
	}

	if cfg.Events.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Events.Region)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, matching.WithPublisher(events.NewSNSPublisher(sns, cfg.Events.TopicARN, log)))
		log.Info("match events enabled", map[string]interface{}{"topic": cfg.Events.TopicARN})
	}

	asm := assembler.New(narrator, config.GetDuration(cfg.Narration.Timeout), log)
	a.service = matching.NewService(matcher, asm, log, opts...)
	return a, nil
}

// buildGateway connects the configured catalog backend. Network backends
// are retried so the process survives a database that starts after it.
func (a *app) buildGateway(ctx context.Context) (gateway.Gateway, error) {
	cfg := a.cfg
	opts := gateway.Options{
		Table:        cfg.Catalog.Table,
		Index:        cfg.Catalog.Index,
		PageSize:     cfg.Catalog.PageSize,
		QueryTimeout: config.GetDuration(cfg.Catalog.QueryTimeout),
	}

	switch cfg.Catalog.Backend {
	case config.BackendPostgres:
		var pg *database.SQLClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				pg.Close()
				return err
			}
			return nil
		}, 15, 2*time.Second, a.logger, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		a.logger.Info("PostgreSQL connected successfully", nil)
		return gateway.NewSQLGateway(pg, opts, a.logger)

	case config.BackendSQLite:
		lite, err := database.NewSQLite(ctx, cfg.Database.SQLite)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, lite.Close)
		return gateway.NewSQLGateway(lite, opts, a.logger)

	case config.BackendElasticsearch:
		var es *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, a.logger, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		a.logger.Info("Elasticsearch connected successfully", nil)
		if ok, err := es.IndexExists(ctx, opts.Index); err == nil && !ok {
			a.logger.Warn("catalog index not found; every category will come back empty", map[string]interface{}{"index": opts.Index})
		}
		return gateway.NewElasticsearchGateway(es.Client, opts, a.logger), nil

	case config.BackendFile:
		return gateway.LoadMemoryGateway(cfg.Catalog.FilePath, a.logger)

	default:
		return nil, fmt.Errorf("unsupported catalog backend %q", cfg.Catalog.Backend)
	}
}

func (a *app) buildNarrator(ctx context.Context) (narration.Narrator, error) {
	cfg := a.cfg
	if !cfg.Narration.Enabled {
		return nil, nil
	}

	switch cfg.Narration.Provider {
	case config.ProviderGemini:
		client, err := narration.NewGeminiClient(ctx, cfg.APIs.Gemini.APIKey, cfg.APIs.Gemini.Model, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return client, nil
	default:
		return narration.NewGenAIClient(narration.GenAIConfig{
			BaseURL:           cfg.APIs.GenAI.BaseURL,
			APIKey:            cfg.APIs.GenAI.APIKey,
			MaxRetries:        cfg.Narration.MaxRetries,
			RequestsPerSecond: cfg.Narration.RequestsPerSecond,
		}, a.logger), nil
	}
}

// Close waits for pending event publishes and releases connections in
// reverse order of creation.
func (a *app) Close() {
	if a.service != nil {
		a.service.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
	a.obs.Shutdown()
}
