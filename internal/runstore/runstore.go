// Package runstore keeps a SQLite catalog of pipeline runs and the products they wrote.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/runstore/migrations"
)

type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Run is one execution of the pipeline over one source
type Run struct {
	ID         string
	Source     string
	CRS        string
	Resolution float64
	Parameters map[string]string
	Status     Status
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
}

// Product is a raster written by a run
type Product struct {
	RunID          string
	Product        grid.Product
	Path           string
	Cols           int
	Rows           int
	ValidCells     int
	UnresolvedGaps int
	Provenance     grid.Provenance
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the catalog at path and applies pending migrations.
// ":memory:" gives a private in-memory catalog.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps in-memory catalogs alive and serializes writers
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configuring catalog %s: %w", path, err)
		}
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to load catalog migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: closing it would close the shared connection
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("catalog migration up failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun records a new running run and returns it with a fresh identifier
func (s *Store) BeginRun(ctx context.Context, source, crs string, resolution float64, parameters map[string]string) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		Source:     source,
		CRS:        crs,
		Resolution: resolution,
		Parameters: parameters,
		Status:     StatusRunning,
		StartedAt:  s.now(),
	}
	encoded, err := json.Marshal(parameters)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, source, crs, resolution, parameters, status, started_unix_nanos)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.CRS, run.Resolution, string(encoded), string(run.Status), run.StartedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("recording run for %s: %w", source, err)
	}
	return run, nil
}

// FinishRun closes a run, failed when runErr is not nil
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, message := StatusSucceeded, sql.NullString{}
	if runErr != nil {
		status = StatusFailed
		message = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_unix_nanos = ? WHERE run_id = ?`,
		string(status), message, s.now().UnixNano(), runID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("unknown run %s", runID)
	}
	return nil
}

func (s *Store) RecordProduct(ctx context.Context, p Product) error {
	provenance, err := json.Marshal(p.Provenance)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO products (run_id, product, path, cols, rows, valid_cells, unresolved_gaps, provenance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RunID, string(p.Product), p.Path, p.Cols, p.Rows, p.ValidCells, p.UnresolvedGaps, string(provenance))
	return err
}

// ListRuns returns the most recent runs first. limit <= 0 lists every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, source, crs, resolution, parameters, status, error, started_unix_nanos, finished_unix_nanos
		FROM runs ORDER BY started_unix_nanos DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			status     string
			parameters string
			message    sql.NullString
			started    int64
			finished   sql.NullInt64
		)
		if err := rows.Scan(&run.ID, &run.Source, &run.CRS, &run.Resolution, &parameters, &status, &message, &started, &finished); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(parameters), &run.Parameters); err != nil {
			return nil, fmt.Errorf("run %s parameters: %w", run.ID, err)
		}
		run.Status = Status(status)
		run.Error = message.String
		run.StartedAt = time.Unix(0, started)
		if finished.Valid {
			run.FinishedAt = time.Unix(0, finished.Int64)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Products lists the products of a run ordered by product name
func (s *Store) Products(ctx context.Context, runID string) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, product, path, cols, rows, valid_cells, unresolved_gaps, provenance
		 FROM products WHERE run_id = ? ORDER BY product`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var (
			p          Product
			product    string
			provenance string
		)
		if err := rows.Scan(&p.RunID, &product, &p.Path, &p.Cols, &p.Rows, &p.ValidCells, &p.UnresolvedGaps, &provenance); err != nil {
			return nil, err
		}
		p.Product = grid.Product(product)
		if err := json.Unmarshal([]byte(provenance), &p.Provenance); err != nil {
			return nil, fmt.Errorf("product %s of run %s: %w", product, p.RunID, err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
