package flightlog

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time  DATETIME NOT NULL,
    connection  TEXT NOT NULL,
    config      TEXT
);

CREATE TABLE IF NOT EXISTS telemetry (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id    INTEGER NOT NULL REFERENCES sessions(id),
    timestamp     DATETIME NOT NULL,
    latitude      REAL,
    longitude     REAL,
    altitude      REAL,
    heading       REAL,
    groundspeed   REAL,
    climb_rate    REAL,
    battery_pct   REAL,
    satellites    INTEGER,
    flight_mode   TEXT,
    armed         INTEGER
);

CREATE TABLE IF NOT EXISTS commands (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  INTEGER NOT NULL REFERENCES sessions(id),
    command_id  TEXT NOT NULL,
    command     TEXT NOT NULL,
    status      TEXT NOT NULL,
    finished_at DATETIME NOT NULL,
    duration_ms INTEGER NOT NULL,
    error       TEXT,
    details     TEXT
);`

// Indexes are created on Close, once writes are done; bulk inserts are
// faster without them.
const initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_telemetry_session ON telemetry(session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_commands_session ON commands(session_id, finished_at);`

const (
	insertSessionSQL = `
INSERT INTO sessions (start_time, connection, config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

	insertCommandSQL = `
INSERT INTO commands (session_id,
                      command_id,
                      command,
                      status,
                      finished_at,
                      duration_ms,
                      error,
                      details)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	insertTelemetrySQL = `
    INSERT INTO telemetry (
        session_id,
        timestamp,
        latitude,
        longitude,
        altitude,
        heading,
        groundspeed,
        climb_rate,
        battery_pct,
        satellites,
        flight_mode,
        armed
    )
    VALUES `

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    connection,
    config
FROM sessions`

	selectTrackSQL = `
SELECT
    timestamp,
    latitude,
    longitude,
    altitude,
    groundspeed,
    battery_pct
FROM telemetry
WHERE
    session_id = ?
ORDER BY timestamp`

	selectCommandsSQL = `
SELECT
    command_id,
    command,
    status,
    finished_at,
    duration_ms,
    error
FROM commands
WHERE
    session_id = ?
ORDER BY finished_at`
)
