package taskq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

type (
	// Handler executes one action with the task's arguments.
	Handler interface {
		Handle(ctx context.Context, data Data) error
	}

	// HandlerFunc adapts a plain function to Handler.
	HandlerFunc func(ctx context.Context, data Data) error

	// TypedHandlerFunc receives the task arguments decoded into T.
	TypedHandlerFunc[T any] func(ctx context.Context, args T) error
)

func (f HandlerFunc) Handle(ctx context.Context, data Data) error {
	return f(ctx, data)
}

// NewHandler wraps a typed function. Data is re-encoded as JSON and decoded
// into T before the call.
func NewHandler[T any](fn TypedHandlerFunc[T]) Handler {
	return &typedHandler[T]{fn: fn}
}

type typedHandler[T any] struct {
	fn TypedHandlerFunc[T]
}

func (h *typedHandler[T]) Handle(ctx context.Context, data Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Join(ErrPayloadDecode, err)
	}
	var args T
	if err := json.Unmarshal(raw, &args); err != nil {
		return errors.Join(ErrPayloadDecode, err)
	}
	return h.fn(ctx, args)
}

// Service is the set of methods registered under one handler name.
type Service map[string]Handler

// Registry maps action names to handlers. Actions are validated when
// registered, so dispatch only has to look them up.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

// Register binds action ("<handler>.<method>") to h.
func (r *Registry) Register(action string, h Handler) error {
	if h == nil {
		return fmt.Errorf("%w: nil handler for %q", ErrInvalidAction, action)
	}
	name, method, err := SplitAction(action)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[name]
	if !ok {
		svc = make(Service)
		r.services[name] = svc
	}
	if _, exists := svc[method]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerAlreadyRegistered, action)
	}
	svc[method] = h
	return nil
}

// RegisterFunc is Register for a plain function.
func (r *Registry) RegisterFunc(action string, fn func(ctx context.Context, data Data) error) error {
	if fn == nil {
		return r.Register(action, nil)
	}
	return r.Register(action, HandlerFunc(fn))
}

// MustRegister panics if registration fails. Meant for wiring at startup.
func (r *Registry) MustRegister(action string, h Handler) {
	if err := r.Register(action, h); err != nil {
		panic(err)
	}
}

// Resolve returns a copy of the methods registered under a handler name.
func (r *Registry) Resolve(name string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, ok := r.services[name]
	if !ok {
		return nil, false
	}
	out := make(Service, len(svc))
	for m, h := range svc {
		out[m] = h
	}
	return out, true
}

// Lookup returns the handler for a full action name.
func (r *Registry) Lookup(action string) (Handler, error) {
	name, method, err := SplitAction(action)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, ok := r.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, name)
	}
	h, ok := svc[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no method %s", ErrHandlerNotFound, name, method)
	}
	return h, nil
}

// Actions lists every registered action, sorted.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for name, svc := range r.services {
		for method := range svc {
			out = append(out, name+actionDelimiter+method)
		}
	}
	sort.Strings(out)
	return out
}
