package store

import (
	"fmt"

	"github.com/cxd309/roadsim/internal/engine"
)

// RunRecorder is an engine.Recorder writing one run into the database.
type RunRecorder struct {
	db    *DB
	runID string
}

// RunID is the id of the run being recorded.
func (r *RunRecorder) RunID() string { return r.runID }

// RecordStep stores the non-empty edge loads of the step.
func (r *RunRecorder) RecordStep(rep engine.StepReport) error {
	tx, err := r.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("store step %d: %w", rep.Step, err)
	}
	stmt, err := tx.Prepare(`INSERT INTO step_loads (run_id, step, time_slot, edge_id, load) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store step %d: %w", rep.Step, err)
	}
	defer stmt.Close()

	for id, vs := range rep.FinalLoads {
		if len(vs) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.runID, rep.Step, rep.TimeSlot, id, len(vs)); err != nil {
			tx.Rollback()
			return fmt.Errorf("store step %d edge %q: %w", rep.Step, id, err)
		}
	}
	return tx.Commit()
}

// Finish closes the run and stores edge statistics and trips.
func (r *RunRecorder) Finish(s engine.Summary) error {
	tx, err := r.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("store summary: %w", err)
	}

	if _, err := tx.Exec(`UPDATE runs SET steps = ?, final_time = ?, finished = 1 WHERE id = ?`,
		s.Steps, s.FinalTimeSlot, r.runID); err != nil {
		tx.Rollback()
		return fmt.Errorf("store summary: %w", err)
	}
	// a reopened run replaces its earlier summary
	for _, table := range []string{"edge_stats", "trips"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE run_id = ?`, r.runID); err != nil {
			tx.Rollback()
			return fmt.Errorf("store summary: %w", err)
		}
	}

	edgeStmt, err := tx.Prepare(`INSERT INTO edge_stats (run_id, edge_id, arrived, density, speed, travel_time, traffic_volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store summary: %w", err)
	}
	defer edgeStmt.Close()
	for _, st := range s.EdgeStatistics() {
		if _, err := edgeStmt.Exec(r.runID, st.EdgeID, st.Arrived, st.Density, st.Speed, st.TravelTime, st.TrafficVolume); err != nil {
			tx.Rollback()
			return fmt.Errorf("store edge %q: %w", st.EdgeID, err)
		}
	}

	tripStmt, err := tx.Prepare(`INSERT INTO trips (run_id, vehicle_id, type_id, depart, depart_edge, arrival, arrival_edge, route_length, duration, wait_steps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store summary: %w", err)
	}
	defer tripStmt.Close()
	for _, ti := range s.TripInfos() {
		if _, err := tripStmt.Exec(r.runID, ti.VehicleID, ti.TypeID, ti.Depart, ti.DepartEdge, ti.Arrival, ti.ArrivalEdge, ti.RouteLength, ti.Duration, ti.WaitSteps); err != nil {
			tx.Rollback()
			return fmt.Errorf("store trip %q: %w", ti.VehicleID, err)
		}
	}
	return tx.Commit()
}
