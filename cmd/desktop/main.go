// Package main provides the local POS server for desktop platforms.
// Desktop clients communicate via REST/WebSocket on localhost:8090.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fitri99main/itongPOS-sub000/internal/app"
	"github.com/fitri99main/itongPOS-sub000/internal/config"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("POS_CONFIG"))
	level := logging.LevelInfo
	if err == nil {
		level = logging.ParseLevel(cfg.Log.Level)
	}
	logging.Init(os.Stdout, level)
	if err != nil {
		logging.Error("Failed to load configuration", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("Desktop server stopped with error", err)
		os.Exit(1)
	}
}

// run serves the API until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	core, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer core.Close()

	hub := NewWSHub()
	defer hub.Close()
	detach := wireEvents(core, hub)
	defer detach()

	core.Start(ctx)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      newRouter(core, hub),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("POS desktop server starting", map[string]interface{}{"addr": cfg.HTTP.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Shutting down desktop server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
