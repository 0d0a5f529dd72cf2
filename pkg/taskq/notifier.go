package taskq

import (
	"context"
	"sync"
)

// Notifier wakes an idle runner when a task is added. Notifications are
// hints: a runner that misses one still finds the task on its next poll.
type Notifier interface {
	Notify(ctx context.Context) error
	Subscribe(ctx context.Context) <-chan struct{}
}

// LocalNotifier is a Notifier for producers and a runner sharing a process.
// Pending signals coalesce into one.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// NewLocalNotifier creates a notifier with no subscribers.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[chan struct{}]struct{})}
}

// Notify signals every subscriber without blocking.
func (n *LocalNotifier) Notify(_ context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel that receives a value after Notify. The
// subscription ends when ctx is done.
func (n *LocalNotifier) Subscribe(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs, ch)
		n.mu.Unlock()
	}()

	return ch
}
