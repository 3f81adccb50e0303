// Package service assembles the firewatch components into one running process.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"firewatch/common/database"
	mqttcommon "firewatch/common/mqtt"
	rediscommon "firewatch/common/redis"
	"firewatch/internal/cache"
	"firewatch/internal/config"
	"firewatch/internal/consumer"
	"firewatch/internal/evaluator"
	"firewatch/internal/events"
	"firewatch/internal/gateway"
	"firewatch/internal/history"
	httpapi "firewatch/internal/http"
	"firewatch/internal/hub"
	"firewatch/internal/ingest"
	"firewatch/internal/metrics"
	"firewatch/internal/models"
	"firewatch/internal/notify"
	"firewatch/internal/registry"
	"firewatch/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// consumerRunner is a producer feed that blocks in Start until ctx ends.
type consumerRunner interface {
	Start(ctx context.Context) error
}

// FirewatchService owns every component and their lifecycles.
type FirewatchService struct {
	config *config.Config
	logger *zap.Logger

	registry *registry.Registry
	engine   *evaluator.Engine
	history  *history.Store
	metrics  *metrics.Metrics
	hub      *hub.Hub
	pipeline *ingest.Pipeline
	gateway  *gateway.Gateway
	sweeper  *ingest.Sweeper
	router   *httpapi.Router
	server   *Server

	sinks     []*events.Async
	consumers map[string]consumerRunner

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	mqttFeed    *consumer.MQTTConsumer

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFirewatchService connects the optional backends named in cfg and wires
// the in-memory core around them.
func NewFirewatchService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*FirewatchService, error) {
	s := &FirewatchService{
		config:    cfg,
		logger:    logger,
		registry:  registry.New(),
		engine:    evaluator.NewEngine(cfg.Alerts, logger.Named("alerts")),
		history:   history.NewStore(cfg.History),
		metrics:   metrics.New(),
		consumers: make(map[string]consumerRunner),
	}
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	s.hub = hub.New(cfg.Sessions, cfg.ServerVersion, logger.Named("hub"), s.metrics)

	if err := s.connectBackends(ctx); err != nil {
		s.closeBackends()
		return nil, err
	}

	publisher := events.Fanout{s.hub, s.metrics}
	var archive httpapi.AlertArchive

	if s.redisClient != nil {
		mirror := cache.NewMirror(s.redisClient, cfg.Cache, logger.Named("cache"))
		publisher = append(publisher, s.addSink("redis_mirror", mirror))
	}
	if s.db != nil {
		repo := repository.NewAlertEventsRepository(s.db, logger.Named("repository"))
		if err := repo.EnsureSchema(ctx); err != nil {
			s.closeBackends()
			return nil, fmt.Errorf("failed to prepare alert archive: %w", err)
		}
		publisher = append(publisher, s.addSink("alert_archive", repo))
		archive = repo
	}
	if s.mqttClient != nil && cfg.Notify.MQTTAlertTopic != "" {
		relay := notify.NewMQTTRelay(s.mqttClient, cfg.Notify.MQTTAlertTopic, cfg.MQTT.QoS, logger.Named("relay"))
		publisher = append(publisher, s.addSink("mqtt_relay", relay))
	}
		if cfg.Notify.WebhookURL != "" {
		notifier := notify.NewWebhookNotifier(cfg.Notify, logger.Named("notify"))
		publisher = append(publisher, s.addSink("webhook", notifier))
	}

	s.pipeline = ingest.NewPipeline(s.registry, s.engine, s.history, publisher, s.metrics, logger.Named("ingest"))
	s.hub.RegisterCommand(models.CommandAcknowledgeAlert, s.pipeline.HandleAcknowledge)
	s.sweeper = ingest.NewSweeper(s.pipeline, cfg.Alerts.SweepInterval, logger.Named("sweeper"))

	if cfg.BuildingFile != "" {
		b, err := LoadBuilding(cfg.BuildingFile)
		if err != nil {
			s.closeBackends()
			return nil, err
		}
		s.pipeline.SetBuilding(b)
		logger.Info("Building loaded",
			zap.String("file", cfg.BuildingFile),
			zap.Int("floors", len(b.Floors)),
		)
	}

	if s.redisClient != nil {
		s.consumers["redis_stream"] = consumer.NewStreamConsumer(cfg.Ingest, s.redisClient, s.pipeline, logger.Named("stream"))
	}
	if s.mqttClient != nil {
		s.mqttFeed = consumer.NewMQTTConsumer(s.mqttClient, cfg.Ingest.MQTTTopic, cfg.MQTT.QoS, s.pipeline, logger.Named("mqtt"))
		s.consumers["mqtt"] = s.mqttFeed
	}

	s.gateway = gateway.New(s.hub, s.pipeline.Snapshot, cfg.Sessions, cfg.HTTP.AllowedOrigins, logger.Named("gateway"))

	api := httpapi.NewAPI(s.registry, s.engine, s.history, s.pipeline, archive,
		cfg.History, cfg.Ingest.MaxBodyBytes, s.hub.SessionCount, logger.Named("http"))
	s.router = httpapi.NewRouter(logger)
	s.router.RegisterAPIRoutes(api)
	s.router.HandleHandler("/metrics", s.metrics.Handler())
	s.router.HandleHandler("/ws", s.gateway)

	s.server = NewServer(cfg.HTTP.Addr, s.router, cfg.HTTP.ReadHeaderTimeout, logger)
	return s, nil
}

func (s *FirewatchService) connectBackends(ctx context.Context) error {
	if s.config.RedisEnabled {
		s.redisClient = rediscommon.NewRedisClient(&s.config.Redis)
		if err := rediscommon.Ping(ctx, s.redisClient); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}
	if s.config.DatabaseEnabled {
		db, err := database.NewPostgresDB(ctx, &s.config.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
	}
	if s.config.MQTTEnabled {
		client, err := mqttcommon.NewClient(&s.config.MQTT, s.logger.Named("mqtt"))
		if err != nil {
			return err
		}
		s.mqttClient = client
	}
	return nil
}

func (s *FirewatchService) addSink(name string, sink events.Sink) *events.Async {
	a := events.NewAsync(name, sink, s.config.SinkQueueSize, s.logger, s.metrics.SinkDropped)
	s.sinks = append(s.sinks, a)
	return a
}

// Handler is the full HTTP surface: JSON API, /ws and /metrics.
func (s *FirewatchService) Handler() http.Handler { return s.router }

// Pipeline exposes the ingestion entry point to in-process producers.
func (s *FirewatchService) Pipeline() *ingest.Pipeline { return s.pipeline }

// startWorkers launches the sinks, the sweeper and every producer feed.
func (s *FirewatchService) startWorkers(ctx context.Context) {
	// Sinks outlive the workers so Stop can drain their queues.
	sinkCtx := context.WithoutCancel(ctx)
	for _, sink := range s.sinks {
		sink.Start(sinkCtx)
	}

	context.AfterFunc(ctx, s.cancel)
	ctx = s.runCtx

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweeper.Run(ctx)
	}()

	for name, c := range s.consumers {
		s.wg.Add(1)
		go func(name string, c consumerRunner) {
			defer s.wg.Done()
			if err := c.Start(ctx); err != nil {
				s.logger.Error("Consumer stopped with error", zap.String("consumer", name), zap.Error(err))
			}
		}(name, c)
	}
}

// Start runs the workers and then serves HTTP until Stop is called.
func (s *FirewatchService) Start(ctx context.Context) error {
	s.logger.Info("Starting firewatch service components",
		zap.Int("sinks", len(s.sinks)),
		zap.Int("consumers", len(s.consumers)),
	)
	s.startWorkers(ctx)

	if err := s.server.Start(); err != nil {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop drains in order: producer feeds, viewers, HTTP, side outputs, backends.
func (s *FirewatchService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping firewatch service")

	if s.mqttFeed != nil {
		_ = s.mqttFeed.Stop(ctx)
	}
	s.cancel()
	s.wg.Wait()

	if err := s.gateway.Shutdown(ctx); err != nil {
		s.logger.Warn("Viewer sessions did not drain in time", zap.Error(err))
	}
	if err := s.server.Stop(ctx); err != nil {
		s.logger.Error("Error stopping HTTP server", zap.Error(err))
	}

	for _, sink := range s.sinks {
		sink.Stop()
	}
	s.closeBackends()

	s.logger.Info("Firewatch service stopped")
	return nil
}

func (s *FirewatchService) closeBackends() {
	s.cancel()
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Error closing Redis client", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}
}
