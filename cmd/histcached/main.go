// Command histcached runs the market-history range cache daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/finscope/histcache/internal/cache"
	"github.com/finscope/histcache/internal/config"
	"github.com/finscope/histcache/internal/fill"
	"github.com/finscope/histcache/internal/fillevents"
	"github.com/finscope/histcache/internal/logger"
	"github.com/finscope/histcache/internal/observability"
	"github.com/finscope/histcache/internal/server"
	"github.com/finscope/histcache/internal/store/redisstore"
	"github.com/finscope/histcache/internal/upstream/httpfetch"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Component: "histcached",
	}, os.Stdout)

	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting histcached",
		"addr", cfg.Addr,
		"version", Version,
		"redis", cfg.RedisAddr,
		"upstream", cfg.UpstreamURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := redisstore.New(ctx, cfg.RedisAddr, cfg.CoverageCacheSize,
		redisstore.WithReadTimeout(cfg.StoreOpTimeout),
		redisstore.WithWriteTimeout(cfg.StoreOpTimeout),
	)
	if err != nil {
		appLog.Error("record store init failed", "err", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	fetcher, err := httpfetch.New(cfg.UpstreamURL, cfg.UpstreamTimeout)
	if err != nil {
		appLog.Error("upstream client init failed", "err", err)
		return 1
	}

	if cfg.Events.Enabled {
		pub, perr := fillevents.NewPublisher(
			strings.Split(cfg.Events.Brokers, ","),
			cfg.Events.Topic,
			cfg.Events.QueueSize,
		)
		if perr != nil {
			appLog.Error("fill events init failed", "err", perr)
			return 1
		}
		fillevents.InitGlobal(pub)
		defer func() {
			if cerr := fillevents.CloseGlobal(); cerr != nil {
				appLog.Warn("fill events close", "err", cerr)
			}
		}()
	}

	filler := fill.New(fetcher, store, appLog, cfg.UpstreamTimeout)
	svc := cache.New(store, filler, appLog)

	if err := server.Run(ctx, cfg, appLog, svc); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
