package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/magic-auth/config"
	"github.com/ErlanBelekov/magic-auth/internal/health"
	"github.com/ErlanBelekov/magic-auth/internal/janitor"
	ctxlog "github.com/ErlanBelekov/magic-auth/internal/log"
	"github.com/ErlanBelekov/magic-auth/internal/metrics"
	"github.com/ErlanBelekov/magic-auth/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	clearAll := flag.Bool("clear-all", false, "delete every user and token, then exit")
	once := flag.Bool("once", false, "run a single purge, then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	j := janitor.New(st.Tokens, st.Users, cfg.JanitorRetention, logger)

	switch {
	case *clearAll:
		users, tokens, err := j.ClearAll(ctx)
		if err != nil {
			logger.Error("clear all", "error", err)
			return
		}
		logger.Info("clear all done", "users", users, "tokens", tokens)
		return
	case *once:
		n, err := j.Purge(ctx)
		if err != nil {
			logger.Error("purge", "error", err)
			return
		}
		logger.Info("purge done", "count", n)
		return
	}

	metrics.Register(prometheus.DefaultRegisterer)
	deps := map[string]health.Pinger{}
	if st.Pinger != nil {
		deps[cfg.StoreDriver] = st.Pinger
	}
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer, deps)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	if err := j.Start(ctx, cfg.JanitorCron); err != nil {
		logger.Error("janitor", "error", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("janitor shut down")
}
