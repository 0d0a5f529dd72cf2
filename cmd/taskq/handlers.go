package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/taskq/pkg/taskq"
)

type sleepArgs struct {
	Duration string `json:"duration"`
}

// registerHandlers installs the built-in actions. Applications embedding the
// runner register their own services on the same registry.
func registerHandlers(r *taskq.Registry, log *slog.Logger) {
	r.MustRegister("log.info", taskq.HandlerFunc(func(ctx context.Context, data taskq.Data) error {
		msg, _ := data["message"].(string)
		log.InfoContext(ctx, msg, slog.Any("data", data))
		return nil
	}))

	r.MustRegister("log.fail", taskq.HandlerFunc(func(ctx context.Context, data taskq.Data) error {
		return fmt.Errorf("requested failure: %v", data["reason"])
	}))

	r.MustRegister("sleep.wait", taskq.NewHandler(func(ctx context.Context, args sleepArgs) error {
		d, err := time.ParseDuration(args.Duration)
		if err != nil {
			return err
		}
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
}
