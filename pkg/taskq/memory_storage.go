package taskq

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// MemoryStorage implements Store in memory for tests and local development.
// A transaction holds the storage's write lock from Begin until Commit or
// Rollback, which serialises runners the way a row lock would.
type MemoryStorage struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	tasks  map[int64]*Task
	nextID int64
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks:  make(map[int64]*Task),
		nextID: 1,
	}
}

// InsertTask implements Store.
func (ms *MemoryStorage) InsertTask(_ context.Context, task *Task) (int64, error) {
	if task == nil {
		return 0, errors.New("task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	taskCopy := cloneTask(task)
	taskCopy.ID = ms.nextID
	ms.nextID++
	ms.tasks[taskCopy.ID] = taskCopy

	return taskCopy.ID, nil
}

// GetTask implements Store.
func (ms *MemoryStorage) GetTask(_ context.Context, id int64) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, ok := ms.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// DeleteTask implements Store.
func (ms *MemoryStorage) DeleteTask(_ context.Context, id int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.tasks, id)
	return nil
}

// ListDead implements Store.
func (ms *MemoryStorage) ListDead(_ context.Context, maxAttempts, limit int) ([]*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var out []*Task
	for _, task := range ms.tasks {
		if task.Attempts >= maxAttempts {
			out = append(out, cloneTask(task))
		}
	}
	slices.SortFunc(out, func(a, b *Task) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ResetTask implements Store.
func (ms *MemoryStorage) ResetTask(_ context.Context, id int64, runAfter time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, ok := ms.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	task.Attempts = 0
	task.RunAfter = runAfter
	return nil
}

// Count implements Store.
func (ms *MemoryStorage) Count(_ context.Context, maxAttempts int) (Stats, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var s Stats
	for _, task := range ms.tasks {
		if task.Attempts >= maxAttempts {
			s.Dead++
		} else {
			s.Pending++
		}
	}
	return s, nil
}

// Len returns the number of stored tasks, dead ones included.
func (ms *MemoryStorage) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.tasks)
}

// Begin implements Store.
func (ms *MemoryStorage) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.txMu.Lock()
	return &memoryTx{ms: ms, pending: make(map[int64]*Task)}, nil
}

// memoryTx buffers writes until Commit.
type memoryTx struct {
	ms      *MemoryStorage
	pending map[int64]*Task
	done    bool
}

func (tx *memoryTx) PickTask(_ context.Context, q SelectQuery) (*Task, error) {
	if tx.done {
		return nil, errTxDone
	}

	tx.ms.mu.Lock()
	defer tx.ms.mu.Unlock()

	var best *Task
	for _, task := range tx.ms.tasks {
		if !q.Matches(task) {
			continue
		}
		if best == nil || q.Less(task, best) {
			best = task
		}
	}
	if best == nil {
		return nil, nil
	}
	return cloneTask(best), nil
}

func (tx *memoryTx) MarkAttempted(_ context.Context, id int64, attempts int, runAfter time.Time) error {
	if tx.done {
		return errTxDone
	}

	tx.ms.mu.Lock()
	task, ok := tx.ms.tasks[id]
	tx.ms.mu.Unlock()
	if !ok {
		return ErrTaskNotFound
	}

	updated := cloneTask(task)
	updated.Attempts = attempts
	updated.RunAfter = runAfter
	tx.pending[id] = updated
	return nil
}

func (tx *memoryTx) Commit(_ context.Context) error {
	if tx.done {
		return errTxDone
	}
	tx.done = true
	defer tx.ms.txMu.Unlock()

	tx.ms.mu.Lock()
	defer tx.ms.mu.Unlock()

	for id, task := range tx.pending {
		if cur, ok := tx.ms.tasks[id]; ok {
			cur.Attempts = task.Attempts
			cur.RunAfter = task.RunAfter
		}
	}
	return nil
}

func (tx *memoryTx) Rollback(_ context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.ms.txMu.Unlock()
	return nil
}

var errTxDone = errors.New("transaction already closed")

func cloneTask(t *Task) *Task {
	c := *t
	if t.Payload != nil {
		c.Payload = append([]byte(nil), t.Payload...)
	}
	return &c
}
