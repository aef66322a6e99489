package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BarkinBalci/eventcore/internal/config"
	"github.com/BarkinBalci/eventcore/internal/core"
	"github.com/BarkinBalci/eventcore/internal/handler"
	ingesthttp "github.com/BarkinBalci/eventcore/internal/ingest/http"
	"github.com/BarkinBalci/eventcore/internal/ingest/sqs"
	"github.com/BarkinBalci/eventcore/internal/ingest/synth"
	"github.com/BarkinBalci/eventcore/internal/logger"
	queuesqs "github.com/BarkinBalci/eventcore/internal/queue/sqs"
	"github.com/BarkinBalci/eventcore/internal/sink/clickhouse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		if err := log.Sync(); err != nil {
			log.Error("failed to sync logger", zap.Error(err))
		}
	}()

	log.Info("starting pipeline service", zap.String("environment", cfg.Service.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chClient, err := clickhouse.NewClient(ctx, cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("failed to create ClickHouse client", zap.Error(err))
	}
	defer func() {
		if err := chClient.Close(); err != nil {
			log.Error("failed to close ClickHouse client", zap.Error(err))
		}
	}()

	if err := chClient.InitSchema(ctx); err != nil {
		log.Fatal("failed to initialize schema", zap.Error(err))
	}
	log.Info("database schema initialized")

	sink := clickhouse.NewSink(chClient, clickhouse.Config{
		MaxBatchSize: cfg.ClickHouse.BatchSizeMax,
		FlushTimeout: cfg.ClickHouse.BatchTimeout,
	}, log)
	go sink.Run(ctx)

	overflowPolicy, err := core.ParseOverflowPolicy(cfg.Pipeline.OverflowPolicy)
	if err != nil {
		log.Fatal("invalid overflow policy", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	metrics := core.NewMetrics()
	metrics.Register(registry)

	pipeline, err := core.Build(ctx, core.Options{
		Workers:        cfg.Pipeline.Workers,
		Terminal:       sink,
		DedupWindow:    cfg.Pipeline.DedupWindow,
		GuardEnabled:   cfg.Pipeline.GuardEnabled,
		GuardWait:      cfg.Pipeline.GuardWait,
		QueueBound:     cfg.Pipeline.QueueBound,
		OverflowPolicy: overflowPolicy,
		Logger:         log,
		Metrics:        metrics,
	})
	if err != nil {
		log.Fatal("failed to build pipeline", zap.Error(err))
	}

	if cfg.SQS.QueueURL != "" {
		sqsClient, err := queuesqs.NewClient(ctx, cfg.SQS, log)
		if err != nil {
			log.Fatal("failed to create SQS client", zap.Error(err))
		}
		adapter := sqs.NewAdapter(sqsClient, pipeline, log)
		go adapter.Start(ctx)
		log.Info("SQS ingest adapter started", zap.String("queue_url", cfg.SQS.QueueURL))
	}

	if cfg.Synth.Enabled {
		generator := synth.NewGenerator(pipeline, synth.Config{
			RatePerSecond:     cfg.Synth.RatePerSecond,
			ClientCardinality: cfg.Synth.ClientCardinality,
			Duration:          cfg.Synth.Duration,
		}, log)
		go generator.Start(ctx)
		log.Info("synthetic load generator started", zap.Int("rate_per_second", cfg.Synth.RatePerSecond))
	}

	producer := ingesthttp.NewProducer(pipeline)
	h := handler.NewHandler(producer, registry, log)

	addr := fmt.Sprintf(":%s", cfg.Service.APIPort)
	server := &http.Server{Addr: addr, Handler: h}

	go func() {
		log.Info("control-plane server starting", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("control-plane server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Pipeline.DedupWindow)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("control-plane server shutdown error", zap.Error(err))
	}
	if err := pipeline.Close(shutdownCtx); err != nil {
		log.Error("pipeline shutdown error", zap.Error(err))
	}
}
