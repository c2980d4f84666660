package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/openuav/missionkit/internal/flightlog"
	"github.com/openuav/missionkit/pkg/geo"
)

// logSummary reads the recorded session back and logs a post-flight
// overview: distance covered, peak altitude, command tally and the size of
// the log database.
func logSummary(logger *slog.Logger, recorder *flightlog.Recorder, sessionID int64, dbPath string, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := recorder.Flush(ctx); err != nil {
		logger.Warn("flushing flight log", slog.String("error", err.Error()))
	}

	track, err := recorder.Track(ctx, sessionID)
	if err != nil {
		logger.Warn("reading flight track", slog.String("error", err.Error()))
		return
	}
	commands, err := recorder.Commands(ctx, sessionID)
	if err != nil {
		logger.Warn("reading command history", slog.String("error", err.Error()))
		return
	}

	var (
		distance float64
		maxAlt   float64
		havePrev bool
		prev     geo.Coordinate
	)
	for _, p := range track {
		if !p.HasPosition {
			continue
		}
		c := geo.Coordinate{Lat: p.Latitude, Lon: p.Longitude, Alt: p.Altitude}
		if havePrev {
			distance += prev.GroundDistanceTo(c)
		}
		prev, havePrev = c, true
		if p.Altitude > maxAlt {
			maxAlt = p.Altitude
		}
	}

	var failed int
	for _, c := range commands {
		if c.Status != "completed" {
			failed++
		}
	}

	var dbSize string
	if info, err := os.Stat(dbPath); err == nil {
		dbSize = humanize.Bytes(uint64(info.Size()))
	}

	logger.Info("flight summary",
		slog.String("duration", elapsed.Round(time.Second).String()),
		slog.String("distance", humanize.CommafWithDigits(distance, 1)+" m"),
		slog.String("maxAltitude", humanize.CommafWithDigits(maxAlt, 1)+" m"),
		slog.Int("samples", len(track)),
		slog.Int("commands", len(commands)),
		slog.Int("commandsFailed", failed),
		slog.String("logSize", dbSize),
		slog.String("logPath", dbPath))
}
