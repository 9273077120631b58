// Package store persists simulation runs in a SQLite database.
//
// Each run gets a random id. Per-step edge loads are written as the run
// progresses; edge statistics and trip records are written when it finishes.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cxd309/roadsim/internal/engine"
	"github.com/cxd309/roadsim/internal/graph"
	"github.com/cxd309/roadsim/internal/logger"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// ":memory:" opens a private in-memory database.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// absent on a fresh database
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS runs (
				id            TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				simulation_id TEXT NOT NULL,
				started_at    TEXT NOT NULL,
				begin_time    REAL NOT NULL,
				step_length   REAL NOT NULL,
				steps         INTEGER NOT NULL DEFAULT 0,
				final_time    REAL NOT NULL DEFAULT 0,
				finished      INTEGER NOT NULL DEFAULT 0
			);

			CREATE TABLE IF NOT EXISTS step_loads (
				run_id    TEXT NOT NULL REFERENCES runs(id),
				step      INTEGER NOT NULL,
				time_slot REAL NOT NULL,
				edge_id   TEXT NOT NULL,
				load      INTEGER NOT NULL,
				PRIMARY KEY (run_id, step, edge_id)
			);

			CREATE TABLE IF NOT EXISTS edge_stats (
				run_id         TEXT NOT NULL REFERENCES runs(id),
				edge_id        TEXT NOT NULL,
				arrived        REAL NOT NULL,
				density        REAL NOT NULL,
				speed          REAL NOT NULL,
				travel_time    REAL NOT NULL,
				traffic_volume REAL NOT NULL,
				PRIMARY KEY (run_id, edge_id)
			);

			CREATE TABLE IF NOT EXISTS trips (
				run_id       TEXT NOT NULL REFERENCES runs(id),
				vehicle_id   TEXT NOT NULL,
				type_id      TEXT NOT NULL,
				depart       REAL NOT NULL,
				depart_edge  TEXT NOT NULL,
				arrival      REAL NOT NULL,
				arrival_edge TEXT NOT NULL,
				route_length REAL NOT NULL,
				duration     REAL NOT NULL,
				wait_steps   INTEGER NOT NULL,
				PRIMARY KEY (run_id, vehicle_id)
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}
	return nil
}

// Run is one stored simulation run.
type Run struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SimulationID string    `json:"simulation_id"`
	StartedAt    time.Time `json:"started_at"`
	BeginTime    float64   `json:"begin_time"`
	StepLength   float64   `json:"step_length"`
	Steps        int       `json:"steps"`
	FinalTime    float64   `json:"final_time"`
	Finished     bool      `json:"finished"`
}

// StartRun registers a new run and returns the recorder that fills it.
func (d *DB) StartRun(name string, meta engine.SimulationMeta) (*RunRecorder, error) {
	id := uuid.NewString()
	_, err := d.sql.Exec(`INSERT INTO runs (id, name, simulation_id, started_at, begin_time, step_length)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, meta.SimulationID, time.Now().UTC().Format(time.RFC3339), meta.BeginTime, meta.StepLength)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &RunRecorder{db: d, runID: id}, nil
}

// Runs returns the most recent runs first.
func (d *DB) Runs(limit int) ([]Run, error) {
	rows, err := d.sql.Query(`SELECT id, name, simulation_id, started_at, begin_time, step_length, steps, final_time, finished
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			started string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.SimulationID, &started, &r.BeginTime, &r.StepLength, &r.Steps, &r.FinalTime, &r.Finished); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StepLoads returns the number of vehicles on each non-empty edge at the end
// of one step of a run.
func (d *DB) StepLoads(runID string, step int) (map[graph.EdgeID]int, error) {
	rows, err := d.sql.Query(`SELECT edge_id, load FROM step_loads WHERE run_id = ? AND step = ?`, runID, step)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[graph.EdgeID]int)
	for rows.Next() {
		var (
			id   string
			load int
		)
		if err := rows.Scan(&id, &load); err != nil {
			return nil, err
		}
		out[id] = load
	}
	return out, rows.Err()
}

// EdgeStats returns the end-of-run edge statistics of a run ordered by edge id.
func (d *DB) EdgeStats(runID string) ([]engine.EdgeStats, error) {
	rows, err := d.sql.Query(`SELECT edge_id, arrived, density, speed, travel_time, traffic_volume
		FROM edge_stats WHERE run_id = ? ORDER BY edge_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.EdgeStats
	for rows.Next() {
		var s engine.EdgeStats
		if err := rows.Scan(&s.EdgeID, &s.Arrived, &s.Density, &s.Speed, &s.TravelTime, &s.TrafficVolume); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Trips returns the trip records of a run ordered by arrival time.
func (d *DB) Trips(runID string) ([]engine.TripInfo, error) {
	rows, err := d.sql.Query(`SELECT vehicle_id, type_id, depart, depart_edge, arrival, arrival_edge, route_length, duration, wait_steps
		FROM trips WHERE run_id = ? ORDER BY arrival, vehicle_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.TripInfo
	for rows.Next() {
		var ti engine.TripInfo
		if err := rows.Scan(&ti.VehicleID, &ti.TypeID, &ti.Depart, &ti.DepartEdge, &ti.Arrival, &ti.ArrivalEdge, &ti.RouteLength, &ti.Duration, &ti.WaitSteps); err != nil {
			return nil, err
		}
		out = append(out, ti)
	}
	return out, rows.Err()
}
