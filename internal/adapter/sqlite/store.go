// Package sqlite mirrors the cleaned dataset and the run history into a
// SQLite database for ad-hoc SQL analysis.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Store implements pipeline.Loader and pipeline.RunRecorder on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "sqlite" }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			row_num INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			location TEXT NOT NULL,
			disease TEXT NOT NULL,
			death_toll_text TEXT NOT NULL,
			disease_known INTEGER NOT NULL,
			continent TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			coordinate_source TEXT NOT NULL,
			death_toll_estimate REAL,
			passthrough_json TEXT NOT NULL,
			run_id TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_records_id ON records(id);`,
		`CREATE INDEX IF NOT EXISTS idx_records_continent ON records(continent);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			records_read INTEGER NOT NULL,
			records_written INTEGER NOT NULL,
			dropped_json TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load replaces the records table with the given dataset in one transaction,
// so the mirror always matches the latest cleaned file. Rows are keyed by
// source row because identical source rows share a record ID.
func (s *Store) Load(ctx context.Context, records []domain.CleanRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records(
		id, row_num, location, disease, death_toll_text, disease_known, continent,
		latitude, longitude, coordinate_source, death_toll_estimate, passthrough_json, run_id)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	runID := nullString(domain.RunIDFromContext(ctx))
	for i := range records {
		rec := &records[i]
		passthrough, mErr := json.Marshal(rec.Passthrough)
		if mErr != nil {
			return fmt.Errorf("encode passthrough for %s: %w", rec.ID, mErr)
		}
		var estimate sql.NullFloat64
		if rec.DeathTollEstimate != nil {
			estimate = sql.NullFloat64{Float64: *rec.DeathTollEstimate, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx,
			rec.ID, rec.Row, rec.Location, rec.Disease, rec.DeathTollText, rec.DiseaseKnown,
			string(rec.Continent), rec.Geo.Lat, rec.Geo.Lon, string(rec.CoordinateSource),
			estimate, string(passthrough), runID,
		); err != nil {
			return fmt.Errorf("insert %s: %w", rec.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Records returns the mirrored dataset in source row order.
func (s *Store) Records(ctx context.Context) ([]domain.CleanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, row_num, location, disease, death_toll_text,
		disease_known, continent, latitude, longitude, coordinate_source, death_toll_estimate,
		passthrough_json FROM records ORDER BY row_num`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CleanRecord
	for rows.Next() {
		var (
			rec         domain.CleanRecord
			continent   string
			source      string
			estimate    sql.NullFloat64
			passthrough string
		)
		if err := rows.Scan(&rec.ID, &rec.Row, &rec.Location, &rec.Disease, &rec.DeathTollText,
			&rec.DiseaseKnown, &continent, &rec.Geo.Lat, &rec.Geo.Lon, &source, &estimate,
			&passthrough); err != nil {
			return nil, err
		}
		rec.Continent = domain.Continent(continent)
		rec.CoordinateSource = domain.CoordinateSource(source)
		if estimate.Valid {
			v := estimate.Float64
			rec.DeathTollEstimate = &v
		}
		if err := json.Unmarshal([]byte(passthrough), &rec.Passthrough); err != nil {
			return nil, fmt.Errorf("decode passthrough for %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordRun appends one batch report to the run history.
func (s *Store) RecordRun(ctx context.Context, report domain.BatchReport) error {
	dropped, err := json.Marshal(report.Dropped)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO runs(run_id, source, started_at, finished_at,
		records_read, records_written, dropped_json) VALUES(?,?,?,?,?,?,?)`,
		report.RunID, report.Source, report.StartedAt.UTC(), report.FinishedAt.UTC(),
		report.Read, report.Written, string(dropped))
	return err
}

// Runs returns the most recent run reports, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]domain.BatchReport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, source, started_at, finished_at,
		records_read, records_written, dropped_json FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BatchReport
	for rows.Next() {
		var (
			r       domain.BatchReport
			started time.Time
			ended   time.Time
			dropped string
		)
		if err := rows.Scan(&r.RunID, &r.Source, &started, &ended, &r.Read, &r.Written, &dropped); err != nil {
			return nil, err
		}
		r.StartedAt, r.FinishedAt = started, ended
		if err := json.Unmarshal([]byte(dropped), &r.Dropped); err != nil {
			return nil, fmt.Errorf("decode dropped counts for %s: %w", r.RunID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
