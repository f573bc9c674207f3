// cmd/server/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"research-agent/internal/common/config"
	"research-agent/internal/common/database"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/observability"
	"research-agent/internal/planner"
	"research-agent/internal/ratelimit"
	"research-agent/internal/scraper"
	"research-agent/internal/search"
	"research-agent/internal/server"
	"research-agent/internal/signer"
	"research-agent/internal/workflow"
)

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	zapLog.Info("Starting research agent...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New("research-agent")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Redis (optional) ---
	var rdb *database.RedisClient
	if cfg.Redis.Address != "" {
		rdb, err = database.NewRedis(cfg.Redis)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err = rdb.Ping(pingCtx)
			cancel()
		}
		if err != nil {
			zapLog.Warn("redis unavailable, continuing without it", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
			zapLog.Info("redis connected", zap.String("address", cfg.Redis.Address))
		}
	}

	// --- Pipeline collaborators ---
	cache := planner.NewCache(log)
	if rdb != nil {
		cache = cache.WithRedis(rdb.GetClient(), time.Duration(cfg.Planner.CacheTTL)*time.Second)
	}
	pl := planner.New(cfg.Planner.MaxQueries, cache, log)

	chain := search.NewChain(cfg.Providers, log)

	var sc *scraper.Scraper
	if cfg.Scraper.Enabled {
		sc = scraper.New(cfg.Scraper, cfg.App.IsDevelopment(), log)
	}

	gen := workflow.NewOpenRouterGenerator(cfg.Generation, log)
	sg := signer.New(cfg.Signing.Key)

	orch := workflow.NewOrchestrator(pl, chain, sc, gen, sg, obs, cfg, log)

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		if rdb != nil {
			limiter = ratelimit.NewRedis(cfg.RateLimit, rdb.GetClient(), log)
		} else {
			limiter = ratelimit.NewMemory(cfg.RateLimit, log)
		}
	}

	srv := server.New(cfg, orch, limiter, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		zapLog.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		zapLog.Error("http server stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, config.Millis(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLog.Info("research agent stopped")
}
