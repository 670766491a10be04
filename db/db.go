package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	apperrors "github.com/nijaru/yt-summary/errors"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	StatusInProgress = "in_progress"
	StatusSuccess    = "success"
	StatusError      = "error"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    video_id TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    chunk_count INTEGER NOT NULL DEFAULT 0,
    started_at DATETIME NOT NULL,
    finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Run is one summarization request. Summary content is never stored.
type Run struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	VideoID    string     `json:"video_id"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	ChunkCount int        `json:"chunk_count"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Store is the sqlite-backed run ledger.
type Store struct {
	db *sql.DB
}

func InitializeDB(dbPath string) (*Store, error) {
	logrus.WithField("path", dbPath).Info("Initializing run ledger")

	if err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "error creating directory for database")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "error opening database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error creating schema")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) StartRun(ctx context.Context, url string) (string, error) {
	id := uuid.New().String()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO runs (id, url, status, started_at) VALUES (?, ?, ?, ?)",
			id, url, StatusInProgress, time.Now().UTC())
		return err
	})
	if err != nil {
		return "", errors.Wrap(err, "error inserting run")
	}
	return id, nil
}

func (s *Store) FinishRun(ctx context.Context, id, videoID, status, errMsg string, chunkCount int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE runs SET video_id = ?, status = ?, error = ?, chunk_count = ?, finished_at = ? WHERE id = ?",
			videoID, status, errMsg, chunkCount, time.Now().UTC(), id)
		if err != nil {
			return errors.Wrap(err, "error updating run")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "error reading affected rows")
		}
		if n == 0 {
			return apperrors.NotFound("Store.FinishRun", nil, "run not found")
		}
		return nil
	})
}

func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, url, video_id, status, error, chunk_count, started_at, finished_at FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("Store.GetRun", err, "run not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "error querying run")
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, url, video_id, status, error, chunk_count, started_at, finished_at FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, errors.Wrap(err, "error querying runs")
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "error scanning run")
		}
		runs = append(runs, *run)
	}
	return runs, errors.Wrap(rows.Err(), "error iterating runs")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run      Run
		finished sql.NullTime
	)
	if err := sc.Scan(&run.ID, &run.URL, &run.VideoID, &run.Status, &run.Error, &run.ChunkCount, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "error beginning transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "error committing transaction")
}
