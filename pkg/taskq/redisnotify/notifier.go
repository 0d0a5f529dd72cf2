package redisnotify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/taskq/pkg/logger"
	"github.com/dmitrymomot/taskq/pkg/taskq"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "taskq:notify"

// Notifier wakes runners in other processes through Redis Pub/Sub.
// Messages carry no data; a runner re-reads the store on every wake-up.
type Notifier struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

var _ taskq.Notifier = (*Notifier)(nil)

// Option configures a Notifier.
type Option func(*Notifier)

// WithChannel overrides the Pub/Sub channel.
func WithChannel(channel string) Option {
	return func(n *Notifier) {
		if channel != "" {
			n.channel = channel
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a Notifier on top of client.
func New(client redis.UniversalClient, opts ...Option) *Notifier {
	n := &Notifier{
		client:  client,
		channel: DefaultChannel,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify publishes a wake-up.
func (n *Notifier) Notify(ctx context.Context) error {
	if err := n.client.Publish(ctx, n.channel, "1").Err(); err != nil {
		return errors.Join(ErrPublish, err)
	}
	return nil
}

// Subscribe returns a channel fed by Pub/Sub messages. Bursts collapse into
// a single pending signal. The subscription is closed when ctx is done.
func (n *Notifier) Subscribe(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)

	pubsub := n.client.Subscribe(ctx, n.channel)
	go func() {
		defer func() {
			if err := pubsub.Close(); err != nil {
				n.logger.DebugContext(ctx, "failed to close subscription", logger.Error(err))
			}
		}()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out
}
