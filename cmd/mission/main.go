package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openuav/missionkit/cmd/mission/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var (
		config  app.Config
		verbose bool
	)
	flag.StringVar(&config.Connection, "conn", "udp://:14550", "MAVLink connection URI (udp://, tcp:// or serial://)")
	flag.StringVar(&config.PlanPath, "plan", "", "Path to a QGroundControl .plan file")
	flag.StringVar(&config.VehicleType, "vehicle", app.VehicleDrone, "Vehicle type: drone, rover or none")
	flag.StringVar(&config.SafetyPath, "safety", "", "Path to a safety limits YAML file (defaults apply when omitted)")
	flag.StringVar(&config.GeofenceEndpoint, "geofence", "", "ZeroMQ endpoint of a geofence validator (off when omitted)")
	flag.StringVar(&config.LogDir, "log", "", "Directory for the flight log database (recording off when omitted)")
	flag.Float64Var(&config.SampleRate, "samplerate", 1, "Telemetry recording rate in Hz")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging")
	flag.Parse()

	if verbose {
		logLevel.Set(slog.LevelDebug)
	}

	if err := config.Validate(); err != nil {
		logger.Error(err.Error())
		flag.Usage()
		os.Exit(app.ExitFailure)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, &config, logger); err != nil {
		logger.Error(fmt.Sprintf("mission failed: %s", err.Error()))

		cancel()
		os.Exit(app.ExitCode(err))
	}
}
