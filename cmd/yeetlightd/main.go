package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/wheelibin/yeetlight/internal/api"
	"github.com/wheelibin/yeetlight/internal/config"
	"github.com/wheelibin/yeetlight/internal/events"
	"github.com/wheelibin/yeetlight/internal/gateway"
	"github.com/wheelibin/yeetlight/internal/repos"
	"github.com/wheelibin/yeetlight/internal/yeetlight"
)

func main() {

	fs := pflag.NewFlagSet("yeetlightd", pflag.ExitOnError)
	config.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	// read the config file
	cfg, err := config.Load(fs)
	if err != nil {
		config.LogConfig{}.NewLogger(os.Stderr).Fatal(err)
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	logger.Info("yeetlightd starting", "backend", cfg.BackendURL)

	db, err := repos.Open(cfg.Database)
	if err != nil {
		logger.Fatal("Error opening database", "err", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// create/wire up services
	gw := gateway.NewGateway(logger, cfg.BackendURL, cfg.RequestTimeout)
	y := yeetlight.NewYeetlight(logger, *cfg, gw, db)
	if err := y.Initialise(ctx); err != nil {
		logger.Fatal("Error loading bulbs", "err", err)
	}

	publisher := events.NewPublisher(logger)
	y.OnChange(publisher.Publish)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewHandler(logger, y, publisher),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
			stop()
		}
	}()

	// start the refresh loop
	y.Run(ctx)

	// cleanup before exit
	publisher.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := y.Close(); err != nil {
		logger.Error("Error closing bulbs", "err", err)
	}
	logger.Info("yeetlightd is closing")
}
