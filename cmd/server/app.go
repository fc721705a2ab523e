package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	beerHandler "taproom/internal/beers/handler"
	"taproom/internal/beers/ids"
	beerMetrics "taproom/internal/beers/metrics"
	beerService "taproom/internal/beers/service"
	"taproom/internal/beers/store"
	"taproom/internal/notify"
	notifyMetrics "taproom/internal/notify/metrics"
	"taproom/internal/notify/mirror"
	"taproom/internal/notify/stream"
	"taproom/internal/platform/config"
	"taproom/internal/platform/kafka"
	"taproom/internal/platform/metrics"
	"taproom/internal/platform/middleware"
	"taproom/internal/platform/redis"
	"taproom/internal/realtime"
	realtimeMetrics "taproom/internal/realtime/metrics"
	"taproom/pkg/platform/httputil"
	"taproom/pkg/platform/middleware/metadata"
	"taproom/pkg/platform/middleware/requesttime"
	"taproom/pkg/platform/sentinel"
)

const healthCheckTimeout = 2 * time.Second

// app holds the wired components so main can run and shut them down.
type app struct {
	cfg        config.Server
	logger     *slog.Logger
	collection *store.Collection
	hub        *notify.Hub
	registry   *realtime.Registry
	redis      *redis.Client
	kafka      *kafka.Client
	router     http.Handler
}

// buildApp wires the collection, its listeners, and the HTTP surface.
// Redis and Kafka are attached only when configured.
func buildApp(ctx context.Context, cfg config.Server, logger *slog.Logger, reg *prometheus.Registry) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(reg)
	notifyM := notifyMetrics.New(reg)

	a.registry = realtime.NewRegistry(
		realtime.WithMaxConnections(cfg.Realtime.MaxConnections),
		realtime.WithMetrics(realtimeMetrics.New(reg)),
	)

	a.hub = notify.NewHub(notify.WithLogger(logger), notify.WithMetrics(notifyM))
	a.hub.Attach(notify.NewBroadcaster(a.registry, logger))
	a.hub.Attach(notify.NewAggregator(a.registry,
		notify.WithReportEvery(cfg.Beers.ReportEvery),
		notify.WithAggregatorLogger(logger),
		notify.WithAggregatorMetrics(notifyM),
	))

	if err := a.attachRedis(ctx); err != nil {
		return nil, err
	}
	if err := a.attachKafka(ctx, notifyM); err != nil {
		a.closeBackends(ctx)
		return nil, err
	}

	a.collection = store.New(a.hub)
	svc, err := beerService.New(a.collection, ids.NewSequence(cfg.Beers.IDStart),
		beerService.WithLogger(logger),
		beerService.WithMetrics(beerMetrics.New(reg)),
	)
	if err != nil {
		a.closeBackends(ctx)
		return nil, fmt.Errorf("create beer service: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(logger))

	beerHandler.New(svc, logger, httpMetrics).Register(r)
	realtime.NewHandler(a.registry, logger, realtime.ClientConfig{
		SendBuffer:   cfg.Realtime.SendBuffer,
		PingInterval: cfg.Realtime.PingInterval,
	}).Register(r)

	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	a.router = r
	return a, nil
}

func (a *app) attachRedis(ctx context.Context) error {
	client, err := redis.New(ctx, a.cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		a.logger.Info("redis not configured, mirror disabled")
		return nil
	}
	m, err := mirror.New(client.Client, a.cfg.Redis.Channel, mirror.WithLogger(a.logger))
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("create redis mirror: %w", err)
	}
	a.redis = client
	a.hub.Attach(m)
	a.logger.Info("redis mirror attached", "channel", a.cfg.Redis.Channel)
	return nil
}

func (a *app) attachKafka(ctx context.Context, m *notifyMetrics.Metrics) error {
	client, err := kafka.New(ctx, a.cfg.Kafka)
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	if client == nil {
		a.logger.Info("kafka not configured, stream disabled")
		return nil
	}
	if err := client.EnsureTopic(ctx); err != nil {
		_ = client.Close(ctx)
		return fmt.Errorf("ensure kafka topic: %w", err)
	}
	s, err := stream.New(client, client.Topic(), stream.WithLogger(a.logger), stream.WithMetrics(m))
	if err != nil {
		_ = client.Close(ctx)
		return fmt.Errorf("create kafka stream: %w", err)
	}
	a.kafka = client
	a.hub.Attach(s)
	a.logger.Info("kafka stream attached", "topic", client.Topic())
	return nil
}

type healthResponse struct {
	Status      string            `json:"status"`
	Beers       int               `json:"beers"`
	Connections int               `json:"connections"`
	Listeners   []string          `json:"listeners"`
	Backends    map[string]string `json:"backends,omitempty"`
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Beers:       a.collection.Count(),
		Connections: a.registry.Len(),
		Listeners:   a.hub.Listeners(),
	}
	status := http.StatusOK

	check := func(name string, err error) {
		if resp.Backends == nil {
			resp.Backends = map[string]string{}
		}
		if err != nil {
			a.logger.WarnContext(ctx, "health check failed", "backend", name, "error", err)
			resp.Backends[name] = "error"
			if errors.Is(err, sentinel.ErrUnavailable) {
				resp.Backends[name] = "down"
			}
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			return
		}
		resp.Backends[name] = "up"
	}
	if a.redis != nil {
		check("redis", a.redis.Health(ctx))
	}
	if a.kafka != nil {
		check("kafka", a.kafka.Health(ctx))
	}

	httputil.WriteJSON(w, status, resp)
}

// closeBackends flushes the stream and closes backend clients.
func (a *app) closeBackends(ctx context.Context) {
	var errs []error
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close(ctx))
		a.kafka = nil
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("closing backends", "error", err)
	}
}
