// Command obsbotctl connects to an OBSBOT camera or the OBSBOT Center app
// and serves an HTTP and websocket control surface for it. With
// -interactive, keys pressed in the terminal run bound actions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/showcontroller/obsbot-osc/internal/config"
	"github.com/showcontroller/obsbot-osc/internal/pubsub"
	"github.com/showcontroller/obsbot-osc/internal/surface"
	"github.com/showcontroller/obsbot-osc/obsbot"
	"github.com/showcontroller/obsbot-osc/obsbot/catalog"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	interactive := flag.Bool("interactive", false, "Run actions bound to keys pressed in the terminal")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, *interactive); err != nil {
		slog.Error("obsbotctl failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}

	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, interactive bool) error {
	slog.Info("starting obsbotctl",
		"addr", cfg.Device.Addr(),
		"transport", cfg.Device.Transport,
		"model", cfg.Device.Model,
		"http_port", cfg.HTTPPort,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ps := pubsub.New()
	inst := obsbot.New(obsbot.Options{
		Logger:   slog.Default(),
		Observer: surface.NewPublisher(ps),
	})

	runDone := make(chan error, 1)
	go func() {
		runDone <- inst.Run(ctx)
	}()
	inst.Open(cfg.Device)

	srv := surface.New(inst, cfg.Device, surface.Options{
		Catalog:     catalog.Default(),
		PubSub:      ps,
		Logger:      slog.Default(),
		CORSOrigins: []string{cfg.CORSOrigin},
		Debug:       cfg.Debug,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("control surface listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan struct{})
	if interactive {
		go func() {
			if err := runKeys(srv, cfg.Keys); err != nil {
				slog.Error("keyboard input failed", "error", err)
			}
			close(quit)
		}()
	}

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-quit:
		slog.Info("quit requested")
	case runErr = <-errChan:
		slog.Error("control surface failed", "error", runErr)
	}

	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("control surface shutdown failed", "error", err)
	}

	inst.Close()
	cancel()
	<-runDone

	slog.Info("obsbotctl stopped")
	return runErr
}
