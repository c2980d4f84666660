package flightlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Session is one recorded flight.
type Session struct {
	ID         int64
	StartTime  time.Time
	Connection string
	Config     *string
}

// TrackPoint is one recorded telemetry sample, reduced to the fields a
// post-flight summary needs.
type TrackPoint struct {
	Timestamp   time.Time
	Latitude    float64
	Longitude   float64
	Altitude    float64
	Groundspeed float64
	BatteryPct  float64
	HasPosition bool
}

// CommandRecord is one recorded command result.
type CommandRecord struct {
	CommandID  string
	Command    string
	Status     string
	FinishedAt time.Time
	Duration   time.Duration
	Error      *string
}

// Sessions lists every recorded flight.
func (r *Recorder) Sessions(ctx context.Context) (sessions []Session, err error) {
	db, err := r.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess Session
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.Connection, &config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		if config.Valid {
			sess.Config = &config.String
		}
		sessions = append(sessions, sess)
	}
	err = rows.Err()
	return
}

// Track returns the recorded telemetry of one session in time order.
func (r *Recorder) Track(ctx context.Context, sessionID int64) (points []TrackPoint, err error) {
	db, err := r.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectTrackSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying track: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var p TrackPoint
		var lat, lon, alt, speed, battery sql.NullFloat64
		if err = rows.Scan(&p.Timestamp, &lat, &lon, &alt, &speed, &battery); err != nil {
			err = fmt.Errorf("scanning track point: %w", err)
			return
		}
		p.HasPosition = lat.Valid && lon.Valid
		p.Latitude = lat.Float64
		p.Longitude = lon.Float64
		p.Altitude = alt.Float64
		p.Groundspeed = speed.Float64
		p.BatteryPct = battery.Float64
		points = append(points, p)
	}
	err = rows.Err()
	return
}

// Commands returns the recorded command results of one session.
func (r *Recorder) Commands(ctx context.Context, sessionID int64) (records []CommandRecord, err error) {
	db, err := r.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectCommandsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying commands: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var rec CommandRecord
		var durationMs int64
		var errText sql.NullString
		if err = rows.Scan(&rec.CommandID, &rec.Command, &rec.Status, &rec.FinishedAt, &durationMs, &errText); err != nil {
			err = fmt.Errorf("scanning command record: %w", err)
			return
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		if errText.Valid {
			rec.Error = &errText.String
		}
		records = append(records, rec)
	}
	err = rows.Err()
	return
}
