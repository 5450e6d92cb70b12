package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/ahrav/shinise-scout/infrastructure/cache"
	"github.com/ahrav/shinise-scout/infrastructure/llm"
	"github.com/ahrav/shinise-scout/infrastructure/middleware"
	"github.com/ahrav/shinise-scout/infrastructure/places"
	"github.com/ahrav/shinise-scout/internal/application"
	"github.com/ahrav/shinise-scout/internal/config"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
)

const serviceName = "shinise-scout"

// app is the fully wired service graph.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	registry *prometheus.Registry
	metrics  *middleware.PrometheusMetrics

	model     *llm.ModelAdapter
	places    *places.Client
	placesErr error

	agents   application.TaskRunner
	pipeline *application.Pipeline
	shops    *application.ShopService
	reviews  *application.ReviewService
	course   *application.CourseService

	closers []func() error
}

func limitOf(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

func buildModel(cfg config.ModelConfig, metrics ports.MetricsCollector, log logger.Logger) (*llm.ModelAdapter, error) {
	if !cfg.Configured() {
		log.Warn("no model credentials configured; analysis tasks will degrade", map[string]any{
			"provider": cfg.Provider,
		})
		return llm.NewModelAdapter(nil, log), nil
	}

	client, err := llm.NewClient(cfg.Provider, llm.ClientConfig{
		APIKey:     cfg.APIKey,
		Project:    cfg.Project,
		Location:   cfg.Location,
		Model:      cfg.Model,
		ImageModel: cfg.ImageModel,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		Middleware: []llm.Middleware{
			llm.TracingMiddleware(serviceName),
			llm.MetricsMiddleware(cfg.Provider, metrics),
			llm.RateLimitMiddleware(limitOf(cfg.RateLimit), max(cfg.Burst, 1)),
			llm.TimeoutMiddleware(cfg.Timeout),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s model client: %w", cfg.Provider, err)
	}
	log.Info("model client ready", map[string]any{"provider": cfg.Provider, "model": cfg.Model})
	return llm.NewModelAdapter(client, log), nil
}

func (a *app) buildStore(ctx context.Context) (ports.DocumentStore, error) {
	c := a.cfg.Cache
	if c.Backend != "redis" {
		return cache.NewMemoryStore(), nil
	}
	store := cache.NewRedisStore(cache.RedisOptions{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		Prefix:   c.Prefix,
	})
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", c.RedisAddr, err)
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// buildApp wires every service from cfg. A missing maps key is recorded in
// placesErr so commands that never touch places still work.
func buildApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = middleware.NewPrometheusMetrics(a.registry)

	model, err := buildModel(cfg.Model, a.metrics, log)
	if err != nil {
		return nil, err
	}
	a.model = model

	a.places, a.placesErr = places.NewClient(places.Config{
		APIKey:   cfg.Maps.APIKey,
		BaseURL:  cfg.Maps.BaseURL,
		Language: cfg.Maps.Language,
		Region:   cfg.Maps.Region,
		QPS:      cfg.Maps.RateLimit,
	}, log, a.metrics)
	if a.placesErr != nil {
		log.Warn("places provider unavailable", map[string]any{"error": a.placesErr.Error()})
	}

	store, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	layer := cache.NewLayer(store, cfg.Cache.TTL, log, a.metrics)

	exec := application.NewExecutor(model, application.RetryConfig{
		MaxRetries: cfg.Executor.MaxRetries,
		BaseDelay:  cfg.Executor.BaseDelay,
		Jitter:     cfg.Executor.Jitter,
	}, log, a.metrics)

	a.agents = middleware.NewTracedRunner(application.NewAgentService(exec, layer, log), a.metrics)
	a.course = application.NewCourseService(model, log)

	if a.places != nil {
		a.pipeline = application.NewPipeline(exec, a.places, a.places, layer, application.PipelineConfig{
			DefaultGenre:       cfg.Pipeline.DefaultGenre,
			DefaultRadius:      cfg.Pipeline.DefaultRadius,
			AIScoreLimit:       cfg.Pipeline.AIScoreLimit,
			FallbackScoreLimit: cfg.Pipeline.FallbackScoreLimit,
			HydrateConcurrency: cfg.Pipeline.HydrateConcurrency,
			ScoreConcurrency:   cfg.Pipeline.ScoreConcurrency,
		}, log, a.metrics)
		a.shops = application.NewShopService(exec, a.places, layer, log)
		a.reviews = application.NewReviewService(exec, a.places, log)
	}
	return a, nil
}

// requirePlaces reports the missing maps configuration.
func (a *app) requirePlaces() error {
	if a.places == nil {
		return fmt.Errorf("places provider required: %w", a.placesErr)
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
