package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/citygrid/hexdensity/internal/boundarycache"
	"github.com/citygrid/hexdensity/internal/cache/densitycache"
	"github.com/citygrid/hexdensity/internal/cache/redisstore"
	"github.com/citygrid/hexdensity/internal/core/config"
	"github.com/citygrid/hexdensity/internal/core/httpclient"
	"github.com/citygrid/hexdensity/internal/core/server"
	"github.com/citygrid/hexdensity/internal/gbfs"
	"github.com/citygrid/hexdensity/internal/ingest"
	"github.com/citygrid/hexdensity/internal/ingest/kafkaconsumer"
	"github.com/citygrid/hexdensity/internal/logger"
	"github.com/citygrid/hexdensity/internal/pipeline"
)

var Version = "dev"

type readiness struct {
	buf *ingest.Buffer
}

func (r readiness) Readiness() (bool, int) {
	if r.buf == nil {
		return true, 0
	}
	return true, r.buf.Len()
}

func main() {
	cfg := config.FromEnv()
	log := newLogger(cfg.LogLevel)
	log.Info("starting density-server", "addr", cfg.Addr, "version", Version, "res", cfg.H3Res)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feeds := cfg.Feeds
	if len(feeds) == 0 {
		feeds = gbfs.DefaultFeeds
	}

	zl := logger.Build(logger.Config{Level: cfg.LogLevel, Component: "gbfs"}, nil)
	fetcher := gbfs.New(httpclient.NewOutbound(), zl)

	boundaries, err := boundarycache.New(cfg.BoundaryCacheSize)
	if err != nil {
		log.Error("boundary cache init", "err", err)
		os.Exit(1)
	}

	opts := []pipeline.Option{
		pipeline.WithColumns(cfg.IDColumn, cfg.LatColumn, cfg.LngColumn),
		pipeline.WithBoundarySource(boundaries.Boundary),
	}

	var buf *ingest.Buffer
	if cfg.Ingest.Enabled {
		buf = ingest.NewBuffer(cfg.Ingest.Capacity)
		opts = append(opts, pipeline.WithBuffer(buf))

		kcfg := kafkaconsumer.FromEnv()
		consumer := kafkaconsumer.New(kcfg,
			logger.Build(logger.Config{Level: cfg.LogLevel, Component: "kafka_consumer"}, nil), buf)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error("kafka ingest consumer stopped", "err", err)
			}
		}()
	}

	if cfg.CacheEnabled {
		cli, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Error("redis connect", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		defer func() { _ = cli.Close() }()
		opts = append(opts, pipeline.WithCache(densitycache.New(cli, cfg.CacheTTL), cfg.CacheTTL))
	}

	p := pipeline.New(
		logger.Build(logger.Config{Level: cfg.LogLevel, Component: "pipeline"}, nil),
		fetcher, feeds, opts...)

	if err := server.Run(ctx, cfg, log, p, readiness{buf: buf}); err != nil {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	logLevel := new(slog.LevelVar)
	switch level {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return slog.New(textHandler)
}
