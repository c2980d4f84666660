// Package app wires the geofence validator daemon: KML fences and bounds
// from a YAML config, served over a ZeroMQ REP socket.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openuav/missionkit/pkg/geofence"
)

func Run(ctx context.Context, configPath, bind string, logger *slog.Logger) error {
	config, err := geofence.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	validator, err := geofence.NewValidator(*config)
	if err != nil {
		return fmt.Errorf("building validator: %w", err)
	}

	logger.Info("geofence validator ready",
		slog.String("vehicleType", config.VehicleType),
		slog.Int("includeFences", len(config.IncludeFences)),
		slog.Int("excludeFences", len(config.ExcludeFences)),
		slog.Bool("checkPaths", config.CheckPaths))

	server := geofence.NewServer(bind, validator, geofence.WithServerLogger(logger))
	return server.Run(ctx)
}
