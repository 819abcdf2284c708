package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/solveiti/trgscout/internal/types"
	_ "modernc.org/sqlite"
)

// timeLayout is the ISO 8601 layout used for all stored timestamps, matching
// the schema's TEXT columns (§6).
const timeLayout = time.RFC3339Nano

// SQLiteStore is the embedded relational store backing the registry (C1)
// and the ledger (C2).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at dbPath,
// applies WAL-mode pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// IsEmpty reports whether the registry has no rows (§4.6 step 2).
func (s *SQLiteStore) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scraped_stores").Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// NewestUpdatedAt returns the most recent updated_at across the registry.
func (s *SQLiteStore) NewestUpdatedAt(ctx context.Context) (bool, string, error) {
	var newest sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT MAX(updated_at) FROM scraped_stores").Scan(&newest)
	if err != nil {
		return false, "", err
	}
	if !newest.Valid {
		return false, "", nil
	}
	return true, newest.String, nil
}

// SeedNew inserts any URLs not already present with defaults. Runs inside a
// single transaction so concurrent ingest calls never double-insert the
// same URL (the UNIQUE(url) constraint additionally protects this).
func (s *SQLiteStore) SeedNew(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeLayout)
	var inserted []string

	for _, url := range urls {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO scraped_stores (url, is_valid, is_automoto, new_vehicle_count, used_vehicle_count, test_vehicle_count, total_vehicle_count, created_at, updated_at)
			VALUES (?, 1, NULL, 0, 0, 0, 0, ?, ?)
			ON CONFLICT(url) DO NOTHING
		`, url, now, now)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", url, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			inserted = append(inserted, url)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seed tx: %w", err)
	}

	return inserted, nil
}

// ListToScrape returns URLs ordered by updated_at ascending, least-recently
// scraped first (§4.6 step 3).
func (s *SQLiteStore) ListToScrape(ctx context.Context, limit int) ([]string, error) {
	query := "SELECT url FROM scraped_stores ORDER BY updated_at ASC"
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

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// GetStore returns the current registry row for a URL, or nil if unknown.
func (s *SQLiteStore) GetStore(ctx context.Context, url string) (*types.Store, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, results, is_valid, is_automoto, new_vehicle_count, used_vehicle_count, test_vehicle_count, total_vehicle_count, created_at, updated_at
		FROM scraped_stores WHERE url = ?
	`, url)
	return scanStore(row)
}

// ListAll returns every registry row ordered by url, for tabular export.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]types.Store, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, results, is_valid, is_automoto, new_vehicle_count, used_vehicle_count, test_vehicle_count, total_vehicle_count, created_at, updated_at
		FROM scraped_stores ORDER BY url ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Store
	for rows.Next() {
		st, err := scanStoreRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func scanStoreRows(rows *sql.Rows) (*types.Store, error) {
	var (
		st         types.Store
		results    sql.NullString
		isAutoMoto sql.NullBool
		createdAt  string
		updatedAt  string
	)
	err := rows.Scan(&st.ID, &st.URL, &results, &st.IsValid, &isAutoMoto,
		&st.NewVehicleCount, &st.UsedVehicleCount, &st.TestVehicleCount, &st.TotalVehicleCount,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	st.Results = results.String
	if isAutoMoto.Valid {
		v := isAutoMoto.Bool
		st.IsAutoMoto = &v
	}
	st.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	st.UpdatedAt, err = time.Parse(timeLayout, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &st, nil
}

func scanStore(row *sql.Row) (*types.Store, error) {
	var (
		st         types.Store
		results    sql.NullString
		isAutoMoto sql.NullBool
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(&st.ID, &st.URL, &results, &st.IsValid, &isAutoMoto,
		&st.NewVehicleCount, &st.UsedVehicleCount, &st.TestVehicleCount, &st.TotalVehicleCount,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.Results = results.String
	if isAutoMoto.Valid {
		v := isAutoMoto.Bool
		st.IsAutoMoto = &v
	}
	st.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	st.UpdatedAt, err = time.Parse(timeLayout, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &st, nil
}

// UpsertOutcome persists a visit outcome and, for valid visits, appends the
// matching ledger row, inside one transaction (§4.7, §9 design note on
// "single source of truth": the prior snapshot is read inline here, never
// cached).
func (s *SQLiteStore) UpsertOutcome(ctx context.Context, url string, outcome types.Outcome) (*types.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeLayout)

	if !outcome.IsValid {
		// Open question 1: preserve last-known counts, only flip is_valid
		// and advance updated_at.
		_, err := tx.ExecContext(ctx, `
			UPDATE scraped_stores SET is_valid = 0, updated_at = ? WHERE url = ?
		`, now, url)
		if err != nil {
			return nil, fmt.Errorf("mark invalid: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit invalid-visit tx: %w", err)
		}
		// Open question 2: no ledger row is written for a failed visit.
		return nil, nil
	}

	total := outcome.Total()
	var autoMoto sql.NullBool
	autoMoto.Valid = true
	autoMoto.Bool = outcome.IsAutoMoto

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scraped_stores (url, is_valid, is_automoto, new_vehicle_count, used_vehicle_count, test_vehicle_count, total_vehicle_count, created_at, updated_at)
		VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			is_valid = 1,
			is_automoto = excluded.is_automoto,
			new_vehicle_count = excluded.new_vehicle_count,
			used_vehicle_count = excluded.used_vehicle_count,
			test_vehicle_count = excluded.test_vehicle_count,
			total_vehicle_count = excluded.total_vehicle_count,
			updated_at = excluded.updated_at
	`, url, autoMoto, outcome.New, outcome.Used, outcome.Test, total, now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert registry row: %w", err)
	}

	prev, err := lastSnapshot(ctx, tx, url)
	if err != nil {
		return nil, fmt.Errorf("read prior snapshot: %w", err)
	}

	snap := &types.Snapshot{
		URL:         url,
		ActiveNew:   outcome.New,
		ActiveUsed:  outcome.Used,
		ActiveTest:  outcome.Test,
		ActiveTotal: total,
	}
	if prev != nil {
		snap.DeltaNew = outcome.New - prev.ActiveNew
		snap.DeltaUsed = outcome.Used - prev.ActiveUsed
		snap.DeltaTest = outcome.Test - prev.ActiveTest
		snap.DeltaTotal = total - prev.ActiveTotal
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO store_snapshots (url, scraped_at, active_new, active_used, active_test, active_total, delta_new, delta_used, delta_test, delta_total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.URL, now, snap.ActiveNew, snap.ActiveUsed, snap.ActiveTest, snap.ActiveTotal,
		snap.DeltaNew, snap.DeltaUsed, snap.DeltaTest, snap.DeltaTotal)
	if err != nil {
		return nil, fmt.Errorf("append snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	snap.ID = id
	snap.ScrapedAt, _ = time.Parse(timeLayout, now)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert tx: %w", err)
	}

	return snap, nil
}

// lastSnapshot reads the most recent ledger row for url within tx, so the
// delta computation always sees the value that will become "prior" once
// this transaction commits (§9: compute inline, never cache).
func lastSnapshot(ctx context.Context, tx *sql.Tx, url string) (*types.Snapshot, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT active_new, active_used, active_test, active_total
		FROM store_snapshots WHERE url = ? ORDER BY scraped_at DESC, id DESC LIMIT 1
	`, url)

	var snap types.Snapshot
	err := row.Scan(&snap.ActiveNew, &snap.ActiveUsed, &snap.ActiveTest, &snap.ActiveTotal)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

var _ Store = (*SQLiteStore)(nil)
