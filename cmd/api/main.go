package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/clinic-platform/internal/app"
	"github.com/jwalitptl/clinic-platform/internal/config"
	"github.com/jwalitptl/clinic-platform/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	l := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Console: cfg.Log.Console,
	})
	l.SetGlobal()

	if err := run(cfg, l); err != nil {
		l.Fatal(err, "api exited with error")
	}
	l.Info("server exited properly")
}

func run(cfg *config.Config, l *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.WithLogger(l))
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.Router().Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	// single-binary deployments run the background workers in-process
	if cfg.Server.EmbeddedWorkers {
		processor, err := a.OutboxProcessor()
		if err != nil {
			return err
		}
		scheduler, err := a.Scheduler()
		if err != nil {
			return err
		}
		g.Go(func() error { return processor.Start(gctx) })
		g.Go(func() error { return scheduler.Run(gctx) })
	}

	g.Go(func() error {
		l.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
