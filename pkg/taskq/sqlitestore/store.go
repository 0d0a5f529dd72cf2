package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/taskq/pkg/taskq"
)

const taskColumns = "id, added_at, run_after, priority, attempts, payload"

// Store implements taskq.Store on a SQLite database.
// Times are stored as unix nanoseconds.
type Store struct {
	db *sql.DB
}

var _ taskq.Store = (*Store)(nil)

// New wraps an open database. Run Migrate first.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) InsertTask(ctx context.Context, task *taskq.Task) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (added_at, run_after, priority, attempts, payload) VALUES (?, ?, ?, ?, ?)`,
		task.AddedAt.UnixNano(), task.RunAfter.UnixNano(), task.Priority, task.Attempts, task.Payload)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetTask(ctx context.Context, id int64) (*taskq.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, taskq.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

func (s *Store) ListDead(ctx context.Context, maxAttempts, limit int) ([]*taskq.Task, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE attempts >= ? ORDER BY id LIMIT ?`,
		maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*taskq.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dead task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *Store) ResetTask(ctx context.Context, id int64, runAfter time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET attempts = 0, run_after = ? WHERE id = ?`,
		runAfter.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("reset task %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return taskq.ErrTaskNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context, maxAttempts int) (taskq.Stats, error) {
	var stats taskq.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN attempts < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN attempts >= ? THEN 1 ELSE 0 END), 0)
		FROM tasks`, maxAttempts, maxAttempts).Scan(&stats.Pending, &stats.Dead)
	if err != nil {
		return taskq.Stats{}, fmt.Errorf("count tasks: %w", err)
	}
	return stats, nil
}

// Begin starts an immediate transaction, which holds the write lock.
func (s *Store) Begin(ctx context.Context) (taskq.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &storeTx{tx: tx}, nil
}

type storeTx struct {
	tx *sql.Tx
}

func (t *storeTx) PickTask(ctx context.Context, q taskq.SelectQuery) (*taskq.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE run_after < ? AND attempts < ?`
	switch q.Mode {
	case taskq.ModeLow:
		query += ` AND priority < 0`
	case taskq.ModeHigh:
		query += ` AND priority >= 0`
	}
	query += ` ORDER BY priority DESC, id ASC LIMIT 1`

	task, err := scanTask(t.tx.QueryRowContext(ctx, query, q.Now.UnixNano(), q.MaxAttempts))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pick task: %w", err)
	}
	return task, nil
}

func (t *storeTx) MarkAttempted(ctx context.Context, id int64, attempts int, runAfter time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE tasks SET attempts = ?, run_after = ? WHERE id = ?`,
		attempts, runAfter.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("mark task %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return taskq.ErrTaskNotFound
	}
	return nil
}

func (t *storeTx) Commit(_ context.Context) error {
	return t.tx.Commit()
}

func (t *storeTx) Rollback(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*taskq.Task, error) {
	var (
		task              taskq.Task
		addedAt, runAfter int64
	)
	if err := row.Scan(&task.ID, &addedAt, &runAfter, &task.Priority, &task.Attempts, &task.Payload); err != nil {
		return nil, err
	}
	task.AddedAt = time.Unix(0, addedAt).UTC()
	task.RunAfter = time.Unix(0, runAfter).UTC()
	return &task, nil
}
