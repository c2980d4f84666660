// Package flightlog records flight sessions to a local sqlite database:
// telemetry samples, command results and session metadata, for post-flight
// analysis.
package flightlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openuav/missionkit/pkg/telemetry"
	"github.com/openuav/missionkit/pkg/vehicle"
)

// batchSize is how many telemetry samples are buffered before a batched
// transaction insert.
const batchSize = 64

// Recorder persists one or more flight sessions to a sqlite file. Write
// and read connections are opened lazily; the writer uses WAL so reads can
// happen mid-flight.
type Recorder struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	mu  sync.Mutex
	buf []telemetryRow

	closeOnce sync.Once
	closeErr  error
}

type telemetryRow struct {
	sessionID   int64
	timestamp   time.Time
	latitude    sql.NullFloat64
	longitude   sql.NullFloat64
	altitude    sql.NullFloat64
	heading     sql.NullFloat64
	groundspeed sql.NullFloat64
	climbRate   sql.NullFloat64
	batteryPct  sql.NullFloat64
	satellites  sql.NullInt64
	flightMode  sql.NullString
	armed       sql.NullBool
}

// New returns a recorder writing to the given sqlite file. The schema is
// created on first use.
func New(dbPath string) *Recorder {
	return &Recorder{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (r *Recorder) getWriteDB() (*sql.DB, error) {
	r.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", r.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			r.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			r.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		r.writeDB = db
	})

	return r.writeDB, r.writeDBErr
}

func (r *Recorder) getReadDB() (*sql.DB, error) {
	r.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", r.dbPath, "mode=ro"))
		if err != nil {
			r.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		r.readDB = db
	})

	return r.readDB, r.readDBErr
}

// CreateSession starts a new flight session. config, when non-nil, is
// stored as JSON alongside the session for reproducibility.
func (r *Recorder) CreateSession(ctx context.Context, connection string, config any) (sessionID int64, err error) {
	var configData sql.NullString
	if config != nil {
		p, err := json.Marshal(config)
		if err != nil {
			return 0, fmt.Errorf("marshaling config: %w", err)
		}
		configData.Valid = true
		configData.String = string(p)
	}

	db, err := r.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, connection, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

// RecordSnapshot buffers one telemetry sample. Samples are flushed in
// batched transactions; call Flush or Close to force pending writes out.
func (r *Recorder) RecordSnapshot(ctx context.Context, sessionID int64, snap telemetry.Snapshot) error {
	row := telemetryRow{
		sessionID: sessionID,
		timestamp: snap.UpdatedAt.UTC(),
	}
	if snap.HasPosition {
		row.latitude = sql.NullFloat64{Float64: snap.Position.Lat, Valid: true}
		row.longitude = sql.NullFloat64{Float64: snap.Position.Lon, Valid: true}
		row.altitude = sql.NullFloat64{Float64: snap.Position.Alt, Valid: true}
	}
	if snap.HasHeading {
		row.heading = sql.NullFloat64{Float64: snap.Heading, Valid: true}
	}
	if snap.HasSpeeds {
		row.groundspeed = sql.NullFloat64{Float64: snap.Groundspeed, Valid: true}
		row.climbRate = sql.NullFloat64{Float64: snap.ClimbRate, Valid: true}
	}
	if snap.HasBattery {
		row.batteryPct = sql.NullFloat64{Float64: snap.Battery.Percentage, Valid: true}
	}
	if snap.HasGPS {
		row.satellites = sql.NullInt64{Int64: int64(snap.GPS.Satellites), Valid: true}
	}
	if snap.HasFlightMode {
		row.flightMode = sql.NullString{String: snap.FlightMode, Valid: true}
	}
	if snap.HasArmed {
		row.armed = sql.NullBool{Bool: snap.Armed, Valid: true}
	}

	r.mu.Lock()
	r.buf = append(r.buf, row)
	full := len(r.buf) >= batchSize
	r.mu.Unlock()

	if full {
		return r.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered telemetry samples in one transaction.
func (r *Recorder) Flush(ctx context.Context) (err error) {
	r.mu.Lock()
	rows := r.buf
	r.buf = nil
	r.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	db, err := r.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, len(rows)*12)
	valuesPlaceholder := "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	var sb strings.Builder
	sb.WriteString(insertTelemetrySQL)

	for i, row := range rows {
		values = append(values,
			row.sessionID,
			row.timestamp,
			row.latitude,
			row.longitude,
			row.altitude,
			row.heading,
			row.groundspeed,
			row.climbRate,
			row.batteryPct,
			row.satellites,
			row.flightMode,
			row.armed,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting telemetry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// RecordResult stores one finished command.
func (r *Recorder) RecordResult(ctx context.Context, sessionID int64, result vehicle.CommandResult) (err error) {
	db, err := r.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	var errText sql.NullString
	if result.Err != nil {
		errText.Valid = true
		errText.String = result.Err.Error()
	}

	var details sql.NullString
	if len(result.Details) > 0 {
		if p, merr := json.Marshal(result.Details); merr == nil {
			details.Valid = true
			details.String = string(p)
		}
	}

	stmt, err := db.PrepareContext(ctx, insertCommandSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	_, err = stmt.ExecContext(ctx,
		sessionID,
		result.ID.String(),
		result.Command,
		result.Status.String(),
		time.Now().UTC(),
		result.Duration.Milliseconds(),
		errText,
		details,
	)
	if err != nil {
		return fmt.Errorf("inserting command result: %w", err)
	}
	return nil
}

// Close flushes pending samples, builds the read indexes and closes both
// connections.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		flushErr := r.Flush(context.Background())

		var writeErr, readErr error
		if r.writeDB != nil {
			_ = runSQLCommand(r.writeDB, initIndexesSQL)
			writeErr = r.writeDB.Close()
			r.writeDB = nil
		}
		if r.readDB != nil {
			readErr = r.readDB.Close()
			r.readDB = nil
		}

		r.closeErr = errors.Join(flushErr, writeErr, readErr)
	})

	return r.closeErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil && !errors.Is(cErr, sql.ErrTxDone) {
		*err = cErr
	}
}
