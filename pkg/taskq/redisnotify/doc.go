// Package redisnotify provides a taskq.Notifier backed by Redis Pub/Sub,
// so producers in one process can wake a runner in another one.
//
//	client, err := redisnotify.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	n := redisnotify.New(client, redisnotify.WithChannel(cfg.Channel))
//
//	enqueuer, _ := taskq.NewEnqueuer(store, taskq.WithNotifier(n))
//	runner, _ := taskq.NewRunner(store, exec, taskq.WithWakeup(n))
//
// Delivery is best effort. A lost message only delays the task until the
// runner's next poll.
package redisnotify
