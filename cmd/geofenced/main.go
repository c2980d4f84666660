package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openuav/missionkit/cmd/geofenced/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var (
		configPath string
		bind       string
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to the geofence configuration file")
	flag.StringVar(&bind, "bind", "tcp://*:14580", "ZeroMQ endpoint to listen on")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging")
	flag.Parse()

	if verbose {
		logLevel.Set(slog.LevelDebug)
	}

	if configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, configPath, bind, logger); err != nil {
		logger.Error(fmt.Sprintf("geofence server failed: %s", err.Error()))

		cancel()
		os.Exit(1)
	}
}
