package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"speedrun-bot/utils"
)

// Store keeps posted run ids and leaderboard watermarks in SQLite.
type Store struct {
	db *sqlx.DB
}

type watermarkRow struct {
	Key       string `db:"leaderboard"`
	Watermark string `db:"watermark"`
}

// Open connects to the SQLite database at dbPath and ensures the tables exist.
func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to posted runs database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	schema := `
    CREATE TABLE IF NOT EXISTS posted_runs (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL UNIQUE
    );
    CREATE TABLE IF NOT EXISTS watermarks (
        leaderboard TEXT NOT NULL PRIMARY KEY,
        watermark TEXT NOT NULL
    );`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create posted runs tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadPostedRuns returns every stored run id in insertion order.
func (s *Store) LoadPostedRuns(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, "SELECT run_id FROM posted_runs ORDER BY seq"); err != nil {
		return nil, &utils.PersistenceError{Op: "load", Path: "posted_runs", Err: err}
	}
	return ids, nil
}

// SavePostedRuns inserts the ids not stored yet, in order, in one transaction.
func (s *Store) SavePostedRuns(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &utils.PersistenceError{Op: "save", Path: "posted_runs", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, "INSERT OR IGNORE INTO posted_runs (run_id) VALUES (?)")
	if err != nil {
		return &utils.PersistenceError{Op: "save", Path: "posted_runs", Err: err}
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return &utils.PersistenceError{Op: "save", Path: "posted_runs", Err: fmt.Errorf("insert run %s: %w", id, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &utils.PersistenceError{Op: "save", Path: "posted_runs", Err: err}
	}
	return nil
}

func (s *Store) LoadWatermark(ctx context.Context, key string) (time.Time, bool, error) {
	var row watermarkRow
	err := s.db.GetContext(ctx, &row, "SELECT leaderboard, watermark FROM watermarks WHERE leaderboard = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, &utils.PersistenceError{Op: "load", Path: "watermarks", Err: err}
	}

	watermark, err := time.Parse(time.RFC3339Nano, row.Watermark)
	if err != nil {
		return time.Time{}, false, &utils.PersistenceError{Op: "load", Path: "watermarks", Err: fmt.Errorf("watermark of %s: %w", key, err)}
	}
	return watermark.UTC(), true, nil
}

func (s *Store) SaveWatermark(ctx context.Context, key string, watermark time.Time) error {
	row := watermarkRow{Key: key, Watermark: watermark.UTC().Format(time.RFC3339Nano)}
	query := `INSERT INTO watermarks (leaderboard, watermark) VALUES (:leaderboard, :watermark)
              ON CONFLICT(leaderboard) DO UPDATE SET watermark = excluded.watermark`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return &utils.PersistenceError{Op: "save", Path: "watermarks", Err: err}
	}
	return nil
}
