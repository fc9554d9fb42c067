package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/enhancegate/internal/api"
	"github.com/dunamismax/enhancegate/internal/archive"
	"github.com/dunamismax/enhancegate/internal/auditlog"
	"github.com/dunamismax/enhancegate/internal/config"
	"github.com/dunamismax/enhancegate/internal/enhance"
	"github.com/dunamismax/enhancegate/internal/gateway"
	"github.com/dunamismax/enhancegate/internal/ledger"
	"github.com/dunamismax/enhancegate/internal/ratelimit"
	"github.com/dunamismax/enhancegate/internal/recordstore"
	"github.com/dunamismax/enhancegate/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[gateway] ", log.LstdFlags|log.Lmsgprefix)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, "enhancegate", cfg.Trace, logger)
	if err != nil {
		logger.Fatalf("setup tracing: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	accounts := recordstore.NewClient(recordstore.Config{
		BaseURL: cfg.RecordStore.BaseURL,
		Token:   cfg.RecordStore.Token,
		BaseID:  cfg.RecordStore.AccountsBaseID,
		Table:   cfg.RecordStore.Table,
		Timeout: cfg.RecordStore.Timeout,
	})
	logs := recordstore.NewClient(recordstore.Config{
		BaseURL: cfg.RecordStore.BaseURL,
		Token:   cfg.RecordStore.Token,
		BaseID:  cfg.RecordStore.LogsBaseID,
		Table:   cfg.RecordStore.Table,
		Timeout: cfg.RecordStore.Timeout,
	})

	notify := func(op string, err error) {
		logger.Printf("best-effort operation dropped op=%s err=%v", op, err)
	}

	creditLedger := ledger.New(logger, accounts, notify)
	audit := auditlog.New(logger, logs, notify)
	enhancer := enhance.NewClient(enhance.Config{
		Endpoint: cfg.Enhance.Endpoint,
		Timeout:  cfg.Enhance.Timeout,
	})

	var gw *gateway.Gateway
	if cfg.Archive.Endpoint != "" {
		archiver, err := archive.NewClient(archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
			URLTTL:    cfg.Archive.URLTTL,
		})
		if err != nil {
			logger.Fatalf("create archive client: %v", err)
		}
		if err := archiver.EnsureBucket(ctx); err != nil {
			logger.Fatalf("ensure archive bucket: %v", err)
		}
		gw = gateway.New(logger, creditLedger, audit, enhancer, archiver, notify, registry)
	} else {
		logger.Printf("output archiving disabled")
		gw = gateway.New(logger, creditLedger, audit, enhancer, nil, notify, registry)
	}

	var limiter api.RateLimiter
	if cfg.RateLimit.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Printf("redis close error: %v", err)
			}
		}()

		limiter, err = ratelimit.NewRedisFixedWindow(rdb, cfg.RateLimit.PerMinute, time.Minute, "enhancegate:ratelimit")
		if err != nil {
			logger.Fatalf("create rate limiter: %v", err)
		}
	} else {
		logger.Printf("rate limiting disabled")
	}

	app := api.NewServer(logger, gw, limiter, registry)

	httpServer := &http.Server{
		Addr:    cfg.API.Addr,
		Handler: app.Handler(),
		// The enhancement call is synchronous and can legitimately run for
		// minutes, so the write timeout follows the enhancement timeout.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Enhance.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}
