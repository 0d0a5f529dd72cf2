package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/taskq/pkg/taskq"
)

const (
	tasksCollection    = "tasks"
	countersCollection = "counters"
	tasksCounter       = "tasks"
)

type taskDoc struct {
	ID       int64     `bson:"_id"`
	AddedAt  time.Time `bson:"added_at"`
	RunAfter time.Time `bson:"run_after"`
	Priority int       `bson:"priority"`
	Attempts int       `bson:"attempts"`
	Payload  []byte    `bson:"payload"`
}

func (d taskDoc) task() *taskq.Task {
	return &taskq.Task{
		ID:       d.ID,
		AddedAt:  d.AddedAt,
		RunAfter: d.RunAfter,
		Priority: d.Priority,
		Attempts: d.Attempts,
		Payload:  d.Payload,
	}
}

// Store implements taskq.Store on MongoDB. Ids come from a counters
// document so tasks keep int64 ids and insertion order. Times are stored
// with millisecond precision.
type Store struct {
	client   *mongo.Client
	tasks    *mongo.Collection
	counters *mongo.Collection
}

var _ taskq.Store = (*Store)(nil)

// New returns a store using the given database.
func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:   client,
		tasks:    db.Collection(tasksCollection),
		counters: db.Collection(countersCollection),
	}
}

// EnsureIndexes creates the indexes used by task selection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "priority", Value: -1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "attempts", Value: 1}, {Key: "run_after", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create task indexes: %w", err)
	}
	return nil
}

// Drop removes both collections.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.tasks.Drop(ctx); err != nil {
		return err
	}
	return s.counters.Drop(ctx)
}

func (s *Store) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": tasksCounter},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func (s *Store) InsertTask(ctx context.Context, task *taskq.Task) (int64, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate task id: %w", err)
	}

	doc := taskDoc{
		ID:       id,
		AddedAt:  task.AddedAt,
		RunAfter: task.RunAfter,
		Priority: task.Priority,
		Attempts: task.Attempts,
		Payload:  task.Payload,
	}
	if _, err := s.tasks.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (*taskq.Task, error) {
	var doc taskDoc
	err := s.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, taskq.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return doc.task(), nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.tasks.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

func (s *Store) ListDead(ctx context.Context, maxAttempts, limit int) ([]*taskq.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.tasks.Find(ctx, bson.M{"attempts": bson.M{"$gte": maxAttempts}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list dead tasks: %w", err)
	}

	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode dead tasks: %w", err)
	}

	tasks := make([]*taskq.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.task())
	}
	return tasks, nil
}

func (s *Store) ResetTask(ctx context.Context, id int64, runAfter time.Time) error {
	res, err := s.tasks.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"attempts": 0, "run_after": runAfter}})
	if err != nil {
		return fmt.Errorf("reset task %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return taskq.ErrTaskNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context, maxAttempts int) (taskq.Stats, error) {
	pending, err := s.tasks.CountDocuments(ctx, bson.M{"attempts": bson.M{"$lt": maxAttempts}})
	if err != nil {
		return taskq.Stats{}, fmt.Errorf("count pending tasks: %w", err)
	}
	dead, err := s.tasks.CountDocuments(ctx, bson.M{"attempts": bson.M{"$gte": maxAttempts}})
	if err != nil {
		return taskq.Stats{}, fmt.Errorf("count dead tasks: %w", err)
	}
	return taskq.Stats{Pending: pending, Dead: dead}, nil
}

// Begin starts a session transaction. A concurrent transaction that
// updates the same task fails with a write conflict at MarkAttempted.
func (s *Store) Begin(ctx context.Context) (taskq.Tx, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if err := sess.StartTransaction(); err != nil {
		sess.EndSession(ctx)
		return nil, fmt.Errorf("start transaction: %w", err)
	}
	return &storeTx{store: s, sess: sess}, nil
}

type storeTx struct {
	store *Store
	sess  *mongo.Session
	done  bool
}

func (t *storeTx) ctx(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, t.sess)
}

func (t *storeTx) PickTask(ctx context.Context, q taskq.SelectQuery) (*taskq.Task, error) {
	filter := bson.M{
		"run_after": bson.M{"$lt": q.Now},
		"attempts":  bson.M{"$lt": q.MaxAttempts},
	}
	switch q.Mode {
	case taskq.ModeLow:
		filter["priority"] = bson.M{"$lt": 0}
	case taskq.ModeHigh:
		filter["priority"] = bson.M{"$gte": 0}
	}

	var doc taskDoc
	err := t.store.tasks.FindOne(t.ctx(ctx), filter,
		options.FindOne().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "_id", Value: 1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pick task: %w", err)
	}
	return doc.task(), nil
}

func (t *storeTx) MarkAttempted(ctx context.Context, id int64, attempts int, runAfter time.Time) error {
	res, err := t.store.tasks.UpdateOne(t.ctx(ctx),
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"attempts": attempts, "run_after": runAfter}})
	if err != nil {
		return fmt.Errorf("mark task %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return taskq.ErrTaskNotFound
	}
	return nil
}

func (t *storeTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.sess.EndSession(ctx)
	return t.sess.CommitTransaction(ctx)
}

func (t *storeTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.sess.EndSession(ctx)
	return t.sess.AbortTransaction(ctx)
}
