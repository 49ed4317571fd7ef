package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	filename    TEXT NOT NULL,
	status      TEXT NOT NULL,
	error_kind  TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	width       INTEGER NOT NULL DEFAULT 0,
	height      INTEGER NOT NULL DEFAULT 0,
	contours    INTEGER NOT NULL DEFAULT 0,
	foreground  INTEGER NOT NULL DEFAULT 0,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at DESC);
`

// SQLiteRunRepository хранилище истории в файле SQLite
type SQLiteRunRepository struct {
	db *sql.DB
}

// OpenSQLiteRunRepository открывает (и при необходимости создаёт) базу по пути path.
func OpenSQLiteRunRepository(ctx context.Context, path string) (*SQLiteRunRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Один писатель: SQLite не любит параллельные транзакции записи.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, runsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate runs: %w", err)
	}
	return &SQLiteRunRepository{db: db}, nil
}

// Close закрывает соединение
func (r *SQLiteRunRepository) Close() error {
	return r.db.Close()
}

// Save создаёт или обновляет запись
func (r *SQLiteRunRepository) Save(ctx context.Context, run *entity.Run) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO runs (id, filename, status, error_kind, message, width, height, contours, foreground, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status = excluded.status,
	error_kind = excluded.error_kind,
	message = excluded.message,
	width = excluded.width,
	height = excluded.height,
	contours = excluded.contours,
	foreground = excluded.foreground,
	finished_at = excluded.finished_at`,
		run.ID, run.Filename, string(run.Status), string(run.ErrorKind), run.Message,
		run.Width, run.Height, run.Contours, run.Foreground,
		toUnixNano(run.StartedAt), toUnixNano(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// Get возвращает запись по ID
func (r *SQLiteRunRepository) Get(ctx context.Context, id string) (*entity.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// Recent возвращает последние записи, новые первыми
func (r *SQLiteRunRepository) Recent(ctx context.Context, limit int) ([]*entity.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*entity.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const runColumns = `id, filename, status, error_kind, message, width, height, contours, foreground, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*entity.Run, error) {
	var (
		run                 entity.Run
		status, kind        string
		started, finishedAt int64
	)
	if err := s.Scan(&run.ID, &run.Filename, &status, &kind, &run.Message,
		&run.Width, &run.Height, &run.Contours, &run.Foreground, &started, &finishedAt); err != nil {
		return nil, err
	}
	run.Status = entity.RunStatus(status)
	run.ErrorKind = entity.ErrorKind(kind)
	run.StartedAt = fromUnixNano(started)
	run.FinishedAt = fromUnixNano(finishedAt)
	return &run, nil
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}

// Проверка реализации интерфейса
var _ port.RunRepository = (*SQLiteRunRepository)(nil)
