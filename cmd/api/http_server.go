package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/giovaniif/court-booking/domain/reservation"
	"github.com/giovaniif/court-booking/infra/config"
	"github.com/giovaniif/court-booking/infra/gateways"
	"github.com/giovaniif/court-booking/infra/journal"
	"github.com/giovaniif/court-booking/infra/logging"
	"github.com/giovaniif/court-booking/infra/loki"
	"github.com/giovaniif/court-booking/infra/metrics"
	"github.com/giovaniif/court-booking/infra/repositories"
	"github.com/giovaniif/court-booking/infra/requestid"
	"github.com/giovaniif/court-booking/infra/tracing"
	protocols "github.com/giovaniif/court-booking/protocols"
	"github.com/giovaniif/court-booking/use_cases/reservations"
)

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestid.Middleware(), tracing.Middleware(), metrics.Middleware, accessLog(logger))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/reservations", h.Reserve)
	r.GET("/reservations", h.List)
	r.DELETE("/reservations/:id", h.Cancel)

	courts := r.Group("/courts/:courtId")
	courts.DELETE("/reservations/first", h.CancelFirstOnCourt)
	courts.GET("/availability", h.Availability)
	courts.GET("/lights", h.Lights)
	courts.POST("/lights/on", h.LightsOn)
	courts.POST("/lights/off", h.LightsOff)

	return r
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/health" {
			return
		}
		logging.WithContext(c.Request.Context(), logger).Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", metrics.NormalizePath(c)),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func StartServer() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	lokiWriter := loki.NewWriter(cfg.LokiURL, map[string]string{"job": cfg.ServiceName})
	var sink zapcore.WriteSyncer
	if lokiWriter != nil {
		sink = lokiWriter
	}
	logger, err := logging.New(cfg.LogLevel, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
		if lokiWriter != nil {
			_ = lokiWriter.Close()
		}
	}()

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	} else if cfg.OTLPEndpoint != "" {
		logger.Info("tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	}
	defer shutdownTracing(context.Background())

	policy, _ := reservation.ParseConflictPolicy(cfg.ConflictPolicy)

	eventGateways := []protocols.EventGateway{metrics.NewRecorder()}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaGateway := gateways.NewEventGatewayKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaGateway.Close()
		eventGateways = append(eventGateways, kafkaGateway)
		logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	switch cfg.JournalDriver {
	case "postgres":
		pg, err := journal.OpenPostgres(ctx, cfg.PGDSN, cfg.PGJournalTable)
		if err != nil {
			logger.Error("postgres journal unavailable", zap.Error(err))
			return
		}
		defer pg.Close()
		eventGateways = append(eventGateways, pg)
		logger.Info("journal: postgres", zap.String("table", cfg.PGJournalTable))
	case "mongo":
		mg, err := journal.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			logger.Error("mongo journal unavailable", zap.Error(err))
			return
		}
		defer mg.Close(context.Background())
		eventGateways = append(eventGateways, mg)
		logger.Info("journal: mongo", zap.String("collection", cfg.MongoCollection))
	}

	checks := map[string]HealthCheck{}
	var idempotencyGateway protocols.IdempotencyGateway
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory idempotency", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			idempotencyGateway = gateways.NewIdempotencyGatewayMemory()
		} else {
			idempotencyGateway = gateways.NewIdempotencyGatewayRedis(rdb)
			logger.Info("reservation idempotency: redis (TTL 24h)")
		}
	} else {
		idempotencyGateway = gateways.NewIdempotencyGatewayMemory()
		logger.Info("reservation idempotency: in-memory (set REDIS_ADDR for redis)")
	}

	service := reservations.NewService(
		repositories.NewReservationRepositoryMemory(),
		reservations.WithConflictPolicy(policy),
		reservations.WithEventGateways(eventGateways...),
		reservations.WithLogger(logger),
	)
	handler := NewHandler(service, reservations.NewIdempotentBook(service, idempotencyGateway, logger), checks, logger)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: NewRouter(handler, logger),
	}

	logger.Info("court booking is running", zap.String("addr", cfg.HTTPAddr), zap.String("conflict_policy", string(policy)))
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	// on return the deferred closes flush kafka, the journal and loki
	if err := run(srv, quit, time.Duration(cfg.ShutdownTimeout)*time.Second, logger); err != nil {
		logger.Error("http server stopped", zap.Error(err))
	}
}

// run serves until srv fails or quit fires, then shuts srv down gracefully.
func run(srv *http.Server, quit <-chan os.Signal, shutdownTimeout time.Duration, logger *zap.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
