package taskq_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskq/pkg/taskq"
)

type mailArgs struct {
	To      string `json:"to"`
	Retries int    `json:"retries"`
}

func TestNewHandler(t *testing.T) {
	t.Parallel()

	t.Run("decodes data into the typed argument", func(t *testing.T) {
		t.Parallel()

		var got mailArgs
		h := taskq.NewHandler(func(ctx context.Context, args mailArgs) error {
			got = args
			return nil
		})

		err := h.Handle(context.Background(), taskq.Data{"to": "a@b.com", "retries": float64(3)})
		require.NoError(t, err)
		assert.Equal(t, mailArgs{To: "a@b.com", Retries: 3}, got)
	})

	t.Run("returns handler error", func(t *testing.T) {
		t.Parallel()

		expected := errors.New("smtp down")
		h := taskq.NewHandler(func(ctx context.Context, args mailArgs) error {
			return expected
		})
		assert.Equal(t, expected, h.Handle(context.Background(), taskq.Data{}))
	})

	t.Run("type mismatch is a decode error", func(t *testing.T) {
		t.Parallel()

		h := taskq.NewHandler(func(ctx context.Context, args mailArgs) error {
			return nil
		})
		err := h.Handle(context.Background(), taskq.Data{"retries": "many"})
		assert.ErrorIs(t, err, taskq.ErrPayloadDecode)
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	noop := taskq.HandlerFunc(func(ctx context.Context, data taskq.Data) error { return nil })

	t.Run("register and lookup", func(t *testing.T) {
		t.Parallel()

		r := taskq.NewRegistry()
		require.NoError(t, r.Register("mailer.send", noop))
		require.NoError(t, r.RegisterFunc("mailer.bounce", func(ctx context.Context, data taskq.Data) error { return nil }))

		h, err := r.Lookup("mailer.send")
		require.NoError(t, err)
		assert.NotNil(t, h)

		svc, ok := r.Resolve("mailer")
		require.True(t, ok)
		assert.Len(t, svc, 2)

		assert.Equal(t, []string{"mailer.bounce", "mailer.send"}, r.Actions())
	})

	t.Run("validated at registration", func(t *testing.T) {
		t.Parallel()

		r := taskq.NewRegistry()
		assert.ErrorIs(t, r.Register("mailer", noop), taskq.ErrInvalidAction)
		assert.ErrorIs(t, r.Register("mailer.send", nil), taskq.ErrInvalidAction)
		assert.ErrorIs(t, r.RegisterFunc("mailer.send", nil), taskq.ErrInvalidAction)

		require.NoError(t, r.Register("mailer.send", noop))
		assert.ErrorIs(t, r.Register("mailer.send", noop), taskq.ErrHandlerAlreadyRegistered)
		assert.Panics(t, func() { r.MustRegister("mailer.send", noop) })
	})

	t.Run("unknown handler or method", func(t *testing.T) {
		t.Parallel()

		r := taskq.NewRegistry()
		require.NoError(t, r.Register("mailer.send", noop))

		_, err := r.Lookup("billing.charge")
		assert.ErrorIs(t, err, taskq.ErrHandlerNotFound)

		_, err = r.Lookup("mailer.receive")
		assert.ErrorIs(t, err, taskq.ErrHandlerNotFound)

		_, ok := r.Resolve("billing")
		assert.False(t, ok)
	})
}
