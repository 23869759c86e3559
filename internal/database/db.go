package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	db *sql.DB
}

// SessionStats summarises accepted invitations per target and session.
type SessionStats struct {
	TargetID  int64     `json:"target_id"`
	Session   string    `json:"session"`
	Invited   int       `json:"invited"`
	LastSeen  time.Time `json:"last_invited_at"`
	FirstSeen time.Time `json:"first_invited_at"`
}

type Run struct {
	ID         string     `json:"id"`
	TargetID   int64      `json:"target_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Invited    int        `json:"invited"`
}

func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &DB{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			target_id INTEGER NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			invited INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS invites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			target_id INTEGER NOT NULL,
			source_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			session TEXT NOT NULL,
			invited_at DATETIME NOT NULL,
			UNIQUE(target_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_invites_target ON invites(target_id);
	`)
	return err
}

// StartRun registers a new run against targetID and returns its ID.
func (d *DB) StartRun(ctx context.Context, targetID int64) (string, error) {
	id := uuid.NewString()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO runs (id, target_id, started_at) VALUES (?, ?, ?)
	`, id, targetID, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("error starting run: %w", err)
	}
	return id, nil
}

func (d *DB) FinishRun(ctx context.Context, runID string, invited int) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, invited = ? WHERE id = ?
	`, time.Now().UTC(), invited, runID)
	if err != nil {
		return fmt.Errorf("error finishing run: %w", err)
	}
	return nil
}

// RecordInvites stores accepted invitations. Users already recorded for
// the target are left untouched.
func (d *DB) RecordInvites(ctx context.Context, runID string, targetID, sourceID int64, session string, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO invites (
			run_id, target_id, source_id, user_id, session, invited_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, userID := range userIDs {
		if _, err := stmt.ExecContext(ctx, runID, targetID, sourceID, userID, session, now); err != nil {
			return fmt.Errorf("error recording invite for user %d: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing invites: %w", err)
	}
	return nil
}

// InvitedUsers returns every user ID recorded for targetID.
func (d *DB) InvitedUsers(ctx context.Context, targetID int64) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT user_id FROM invites WHERE target_id = ?`, targetID)
	if err != nil {
		return nil, fmt.Errorf("error querying invites: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning invite: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (d *DB) Stats(ctx context.Context) ([]SessionStats, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT target_id, session, COUNT(*), MIN(invited_at), MAX(invited_at)
		FROM invites
		GROUP BY target_id, session
		ORDER BY target_id, session
	`)
	if err != nil {
		return nil, fmt.Errorf("error querying stats: %w", err)
	}
	defer rows.Close()

	var stats []SessionStats
	for rows.Next() {
		var (
			s           SessionStats
			first, last string
		)
		if err := rows.Scan(&s.TargetID, &s.Session, &s.Invited, &first, &last); err != nil {
			return nil, fmt.Errorf("error scanning stats: %w", err)
		}
		s.FirstSeen = parseTime(first)
		s.LastSeen = parseTime(last)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Runs returns the most recent runs, newest first.
func (d *DB) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, target_id, started_at, finished_at, invited
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.TargetID, &r.StartedAt, &finished, &r.Invited); err != nil {
			return nil, fmt.Errorf("error scanning run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Aggregates over DATETIME columns come back as text.
func parseTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
