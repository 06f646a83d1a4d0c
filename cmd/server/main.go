package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/magic-auth/config"
	"github.com/ErlanBelekov/magic-auth/internal/email"
	"github.com/ErlanBelekov/magic-auth/internal/health"
	"github.com/ErlanBelekov/magic-auth/internal/infrastructure/rabbitmq"
	"github.com/ErlanBelekov/magic-auth/internal/infrastructure/redisstore"
	ctxlog "github.com/ErlanBelekov/magic-auth/internal/log"
	"github.com/ErlanBelekov/magic-auth/internal/metrics"
	"github.com/ErlanBelekov/magic-auth/internal/session"
	"github.com/ErlanBelekov/magic-auth/internal/store"
	httptransport "github.com/ErlanBelekov/magic-auth/internal/transport/http"
	"github.com/ErlanBelekov/magic-auth/internal/transport/http/handler"
	"github.com/ErlanBelekov/magic-auth/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	if !cfg.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	deps := map[string]health.Pinger{}
	if st.Pinger != nil {
		deps[cfg.StoreDriver] = st.Pinger
	}

	authOpts := usecase.AuthOptions{
		AppBaseURL:   cfg.AppBaseURL,
		DashboardURL: cfg.DashboardURL,
	}

	// Refresh revocation
	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			stop()
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		authOpts.Denylist = redisstore.NewDenylist(rdb)
		deps["redis"] = redisstore.Pinger{Client: rdb}
		logger.Info("refresh revocation enabled")
	}

	// Auth events
	if cfg.AMQPURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.AMQPURL, logger)
		if err != nil {
			stop()
			log.Fatalf("rabbitmq: %v", err)
		}
		defer pub.Close()
		authOpts.Events = pub
		logger.Info("auth event publishing enabled", "exchange", rabbitmq.Exchange)
	}

	issuer, err := session.NewIssuer(session.Options{
		AccessKey:    []byte(cfg.JWTAccessSecret),
		RefreshKey:   []byte(cfg.JWTRefreshSecret),
		AccessTTL:    cfg.AccessTTL,
		RefreshTTL:   cfg.RefreshTTL,
		CookieDomain: cfg.CookieDomain,
		SecureCookie: cfg.SecureCookies(),
	})
	if err != nil {
		stop()
		log.Fatalf("session: %v", err)
	}

	emailSender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	tokenStore := usecase.NewTokenStore(st.Tokens, cfg.MagicLinkTTL, nil)
	authUsecase := usecase.NewAuthUsecase(st.Users, tokenStore, issuer, emailSender, logger, authOpts)
	authHandler := handler.NewAuthHandler(authUsecase, issuer, logger, cfg.ExposeErrors())

	metrics.Register(prometheus.DefaultRegisterer)
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer, deps)

	srv := http.Server{
		Addr: ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, authHandler, issuer, st.Users, httptransport.RouterOptions{
			HSTS: cfg.SecureCookies(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}
