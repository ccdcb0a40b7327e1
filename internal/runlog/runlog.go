// Package runlog records run and stage history in sqlite so past runs
// can be inspected after the process exits.
package runlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/receivia/arclear/internal/database"
)

// Stage outcome statuses.
const (
	StatusOK      = "ok"
	StatusNoData  = "no_data"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Run outcome statuses.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunFailed   = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	status      TEXT NOT NULL,
	entities    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stage_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     INTEGER NOT NULL REFERENCES runs(id),
	created_at TEXT NOT NULL,
	entity     TEXT NOT NULL,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_stage_events_run ON stage_events(run_id);
`

// Run is one recorded pipeline run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Entities   string
}

// StageEvent is one recorded stage outcome.
type StageEvent struct {
	RunID     int64
	CreatedAt time.Time
	Entity    string
	Stage     string
	Status    string
	Detail    string
}

// Repository persists runs and stage events.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates the repository and applies the schema.
func NewRepository(db *database.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply runlog schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("module", "runlog").Logger(),
	}, nil
}

// StartRun records a new run and returns its identifier.
func (r *Repository) StartRun(entities string) (int64, error) {
	res, err := r.db.Exec(
		`INSERT INTO runs (started_at, status, entities) VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), RunRunning, entities,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	return id, nil
}

// FinishRun closes a run with its final status.
func (r *Repository) FinishRun(runID int64, status string) error {
	_, err := r.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), status, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}
	return nil
}

// RecordStage appends one stage outcome. Recording failures are logged
// but never propagate; history must not break the pipeline.
func (r *Repository) RecordStage(runID int64, entity, stage, status, detail string) {
	_, err := r.db.Exec(
		`INSERT INTO stage_events (run_id, created_at, entity, stage, status, detail)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339), entity, stage, status, detail,
	)
	if err != nil {
		r.log.Error().Err(err).Str("entity", entity).Str("stage", stage).
			Msg("Failed to record stage event")
	}
}

// LatestRun returns the most recent run, or nil when none exists.
func (r *Repository) LatestRun() (*Run, error) {
	row := r.db.QueryRow(
		`SELECT id, started_at, finished_at, status, entities
		 FROM runs ORDER BY id DESC LIMIT 1`,
	)

	var run Run
	var started string
	var finished sql.NullString
	err := row.Scan(&run.ID, &started, &finished, &run.Status, &run.Entities)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	run.StartedAt, err = time.Parse(time.RFC3339, started)
	if err != nil {
		return nil, fmt.Errorf("bad started_at on run %d: %w", run.ID, err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339, finished.String)
		if err != nil {
			return nil, fmt.Errorf("bad finished_at on run %d: %w", run.ID, err)
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

// StageEvents returns the stage events of a run in insertion order.
func (r *Repository) StageEvents(runID int64) ([]StageEvent, error) {
	rows, err := r.db.Query(
		`SELECT run_id, created_at, entity, stage, status, detail
		 FROM stage_events WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage events: %w", err)
	}
	defer rows.Close()

	var out []StageEvent
	for rows.Next() {
		var ev StageEvent
		var created string
		if err := rows.Scan(&ev.RunID, &created, &ev.Entity, &ev.Stage, &ev.Status, &ev.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan stage event: %w", err)
		}
		ev.CreatedAt, err = time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, fmt.Errorf("bad created_at on stage event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
