// Package rundb loads simulation runs into an in-memory SQLite database so
// they can be explored with SQL.
//
// Two tables are created: runs, one row per run with its headline figures
// and the swept parameter value if any, and trajectory, one row per run and
// grid point with every compartment and their total. Nothing is written to
// disk; the database lives as long as the DB value.
package rundb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/SIR-SEE/final-project-team-15/internal/engine"
)

// Status values of the runs.status column.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Input is one run to load. Parameter and Value name the swept parameter
// that produced it; Parameter is empty for a plain run.
type Input struct {
	Run       *engine.Run
	Parameter string
	Value     float64
}

// Result holds the rows of a query in column order.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Records returns the rows as column-name maps.
func (r *Result) Records() []map[string]any {
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for i, c := range r.Columns {
			m[c] = row[i]
		}
		out = append(out, m)
	}
	return out
}

// Column describes one column of a table.
type Column struct {
	Table string `json:"table"`
	Name  string `json:"name"`
	Type  string `json:"type"`
}

// DB is an in-memory run database.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates an empty, migrated in-memory database.
func Open(logger *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open run database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	d := NewWithDB(db, logger)
	if err := d.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// NewWithDB wraps an open, migrated connection.
func NewWithDB(db *sql.DB, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DB{db: db, logger: logger}
}

// Close releases the database.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

const insertRun = `INSERT INTO runs (
	id, scenario, parameter, value, status, samples, end_day, peak_infected, peak_day,
	total_deaths, total_vaccinated, final_population, max_drift, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertPoint = `INSERT INTO trajectory (
	run_id, step, day, susceptible, exposed, infected, recovered, dead, vaccinated, total
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Load inserts runs and their trajectories in one transaction. A run
// without a trajectory gets a runs row only.
func (d *DB) Load(ctx context.Context, inputs ...Input) error {
	if d.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	points := 0
	for _, in := range inputs {
		if in.Run == nil {
			continue
		}
		n, err := loadRun(ctx, tx, in)
		if err != nil {
			return err
		}
		points += n
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load: %w", err)
	}
	d.logger.Debug("runs loaded", "runs", len(inputs), "points", points)
	return nil
}

func loadRun(ctx context.Context, tx *sql.Tx, in Input) (int, error) {
	run, s := in.Run, in.Run.Summary

	status := StatusCompleted
	var errMsg, param *string
	var value *float64
	if s.Partial {
		status = StatusFailed
		errMsg = &s.Error
	}
	if in.Parameter != "" {
		param, value = &in.Parameter, &in.Value
	}

	if _, err := tx.ExecContext(ctx, insertRun,
		run.ID, s.Scenario, param, value, status, s.Samples, s.EndDay, s.PeakInfected, s.PeakDay,
		s.TotalDeaths, s.TotalVaccinated, s.FinalPopulation, s.MaxDrift, errMsg); err != nil {
		return 0, fmt.Errorf("failed to load run %s: %w", run.ID, err)
	}

	tr := run.Trajectory
	if tr == nil {
		return 0, nil
	}
	for i, y := range tr.States {
		if _, err := tx.ExecContext(ctx, insertPoint,
			run.ID, i, tr.Times[i], y[0], y[1], y[2], y[3], y[4], y[5], y.Sum()); err != nil {
			return 0, fmt.Errorf("failed to load run %s at step %d: %w", run.ID, i, err)
		}
	}
	return len(tr.States), nil
}

// Query runs a SQL statement and collects every row it returns.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	if d.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	res := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return res, nil
}

// Tables lists the queryable columns, table by table.
func (d *DB) Tables(ctx context.Context) ([]Column, error) {
	res, err := d.Query(ctx, `SELECT m.name, p.name, p.type
FROM sqlite_master m JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND m.name NOT LIKE 'goose_%'
ORDER BY m.name, p.cid`)
	if err != nil {
		return nil, err
	}

	cols := make([]Column, 0, len(res.Rows))
	for _, row := range res.Rows {
		cols = append(cols, Column{Table: fmt.Sprint(row[0]), Name: fmt.Sprint(row[1]), Type: fmt.Sprint(row[2])})
	}
	return cols, nil
}
