package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/clinic-platform/internal/app"
	"github.com/jwalitptl/clinic-platform/internal/config"
	"github.com/jwalitptl/clinic-platform/internal/handler/health"
	metricsHandler "github.com/jwalitptl/clinic-platform/internal/handler/metrics"
	"github.com/jwalitptl/clinic-platform/pkg/logger"
)

// healthAddr serves liveness, readiness and metrics for the worker.
const healthAddr = ":8081"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	l := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Console: cfg.Log.Console,
	})
	l.SetGlobal()

	if err := run(cfg, l); err != nil {
		l.Fatal(err, "worker exited with error")
	}
	l.Info("worker stopped")
}

func run(cfg *config.Config, l *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.WithLogger(l))
	if err != nil {
		return err
	}
	defer a.Close()

	processor, err := a.OutboxProcessor()
	if err != nil {
		return err
	}
	scheduler, err := a.Scheduler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              healthAddr,
		Handler:           healthEngine(a.Store.Ping),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return processor.Start(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health check server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func healthEngine(ping health.Pinger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(ping).RegisterRoutes(engine)
	metricsHandler.NewHandler(prometheus.DefaultGatherer).RegisterRoutes(engine)
	return engine
}
