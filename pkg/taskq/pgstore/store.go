package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/taskq/pkg/taskq"
)

const taskColumns = "id, added_at, run_after, priority, attempts, payload"

// Store implements taskq.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ taskq.Store = (*Store)(nil)

// New wraps a connected pool. Run Migrate first.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) InsertTask(ctx context.Context, task *taskq.Task) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (added_at, run_after, priority, attempts, payload)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		task.AddedAt, task.RunAfter, task.Priority, task.Attempts, task.Payload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (*taskq.Task, error) {
	task, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if IsNotFoundError(err) {
		return nil, taskq.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

func (s *Store) ListDead(ctx context.Context, maxAttempts, limit int) ([]*taskq.Task, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE attempts >= $1 ORDER BY id LIMIT $2`,
		maxAttempts, lim)
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
	tag, err := s.pool.Exec(ctx, `UPDATE tasks SET attempts = 0, run_after = $1 WHERE id = $2`, runAfter, id)
	if err != nil {
		return fmt.Errorf("reset task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return taskq.ErrTaskNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context, maxAttempts int) (taskq.Stats, error) {
	var stats taskq.Stats
	err := s.pool.QueryRow(ctx,
		`SELECT
			count(*) FILTER (WHERE attempts < $1),
			count(*) FILTER (WHERE attempts >= $1)
		FROM tasks`, maxAttempts).Scan(&stats.Pending, &stats.Dead)
	if err != nil {
		return taskq.Stats{}, fmt.Errorf("count tasks: %w", err)
	}
	return stats, nil
}

func (s *Store) Begin(ctx context.Context) (taskq.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &storeTx{tx: tx}, nil
}

type storeTx struct {
	tx pgx.Tx
}

// PickTask locks the selected row until the transaction ends. Rows locked
// by another transaction are skipped.
func (t *storeTx) PickTask(ctx context.Context, q taskq.SelectQuery) (*taskq.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE run_after < $1 AND attempts < $2`
	switch q.Mode {
	case taskq.ModeLow:
		query += ` AND priority < 0`
	case taskq.ModeHigh:
		query += ` AND priority >= 0`
	}
	query += ` ORDER BY priority DESC, id ASC LIMIT 1 FOR UPDATE SKIP LOCKED`

	task, err := scanTask(t.tx.QueryRow(ctx, query, q.Now, q.MaxAttempts))
	if IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pick task: %w", err)
	}
	return task, nil
}

func (t *storeTx) MarkAttempted(ctx context.Context, id int64, attempts int, runAfter time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE tasks SET attempts = $1, run_after = $2 WHERE id = $3`, attempts, runAfter, id)
	if err != nil {
		return fmt.Errorf("mark task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return taskq.ErrTaskNotFound
	}
	return nil
}

func (t *storeTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *storeTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

func scanTask(row pgx.Row) (*taskq.Task, error) {
	var task taskq.Task
	if err := row.Scan(&task.ID, &task.AddedAt, &task.RunAfter, &task.Priority, &task.Attempts, &task.Payload); err != nil {
		return nil, err
	}
	return &task, nil
}
