package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"pitaka.app/internal/auth"
	"pitaka.app/internal/bank"
	"pitaka.app/internal/config"
	"pitaka.app/internal/events"
	"pitaka.app/internal/httpapi"
	"pitaka.app/internal/idem"
	"pitaka.app/internal/obs"
	"pitaka.app/internal/store/pg"
	"pitaka.app/internal/stream"
)

// Set via -ldflags at build time; PITAKA_VERSION overrides.
var (
	version = "0.1.0"
	commit  = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet.
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	if cfg.Version == "dev" {
		cfg.Version = version
	}
	if cfg.Commit == "unknown" {
		cfg.Commit = commit
	}

	logger, err := obs.NewLogger(cfg.Env)
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	obs.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(cfg.Version, cfg.Commit)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("pitaka-api stopped with error", zap.Error(err))
	}
	logger.Info("stopped")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres when a DSN is configured, otherwise process memory.
	var (
		store   bank.Store
		closers []func() error
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			return err
		}
		closers = append(closers, pgStore.Close)
		store = pgStore
		logger.Info("using postgres store")
	} else {
		store = bank.NewInMemory()
		logger.Warn("PITAKA_PG_DSN not set, using in-memory store")
	}

	// Events fan out to live subscribers and, when configured, to Kafka.
	live := stream.New(64)
	sinks := []events.Sink{{Name: "stream", Publisher: live}}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, kp.Close)
		sinks = append(sinks, events.Sink{Name: "kafka", Publisher: kp})
		logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	publisher := events.NewMulti(logger.Named("events"), obs.RecordPublishFailure, sinks...)

	fees, err := bank.FeePolicyByName(cfg.InterbankFee)
	if err != nil {
		return err
	}
	svc, err := bank.NewService(store,
		bank.WithPublisher(publisher),
		bank.WithFeePolicy(fees),
		bank.WithCurrencyLabel(cfg.CurrencyLabel),
		bank.WithCardKey([]byte(cfg.CardSecret)),
		bank.WithLogger(logger.Named("bank")),
		bank.WithObserver(func(op string, err error) {
			obs.RecordOperation(op, bank.Classify(err))
		}),
	)
	if err != nil {
		return err
	}

	bootCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = svc.Bootstrap(bootCtx, bank.DefaultCatalog())
	cancel()
	if err != nil {
		return err
	}

	issuer, err := auth.NewIssuer(cfg.AuthSecret, cfg.AuthIssuer, cfg.TokenTTL)
	if err != nil {
		return err
	}

	probe := httpapi.ReadyProbe{Deps: []httpapi.Pinger{svc}}
	opts := []httpapi.Option{
		httpapi.WithStream(live),
		httpapi.WithReadyProbe(probe),
		httpapi.WithVersion(cfg.Version),
		httpapi.WithAdmins(cfg.IsAdmin),
		httpapi.WithCORSOrigins(cfg.CORSOrigins),
		httpapi.WithRateLimit(cfg.RatePerSec, cfg.RateBurst),
		httpapi.WithLogger(logger.Named("http")),
	}
	if cfg.RedisAddr != "" {
		keys, client := idem.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		closers = append(closers, client.Close)
		probe.Deps = append(probe.Deps, redisPinger{client.Ping})
		opts = append(opts, httpapi.WithIdempotency(keys), httpapi.WithReadyProbe(probe))
		logger.Info("idempotency keys stored in redis", zap.String("addr", cfg.RedisAddr))
	}
	api := httpapi.New(svc, issuer, opts...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Streams hold the response open; per-write deadlines are set by the handlers.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errs := make(chan error, 2)
	go func() {
		logger.Info("starting pitaka-api", zap.String("version", cfg.Version), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		grpcSrv = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcSrv, httpapi.NewGRPCHealth(probe))
		go func() {
			logger.Info("starting grpc health", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errs <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errs:
		logger.Error("server failed", zap.Error(runErr))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("close dependency", zap.Error(err))
		}
	}
	return runErr
}
