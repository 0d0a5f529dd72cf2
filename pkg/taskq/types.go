package taskq

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMaxAttempts is the attempt ceiling; a task that reached it is dead.
	DefaultMaxAttempts = 10

	// DefaultRetryDelay is the fixed backoff window applied on every dispatch.
	DefaultRetryDelay = time.Minute

	// DefaultPollInterval is how long an idle runner sleeps between cycles.
	DefaultPollInterval = time.Second

	// DefaultLockFile is the lock resource used when none is configured.
	DefaultLockFile = "var/taskq.lock"

	actionDelimiter = "."
)

// Data is the argument map passed to a handler.
type Data map[string]any

// Task is a single queued unit of work.
type Task struct {
	ID       int64     `json:"id"`
	AddedAt  time.Time `json:"added_at"`
	RunAfter time.Time `json:"run_after"`
	Priority int       `json:"priority"`
	Attempts int       `json:"attempts"`
	Payload  []byte    `json:"payload"`
}

// Payload is the decoded form of Task.Payload.
type Payload struct {
	Action string `json:"action"`
	Data   Data   `json:"data"`
}

// EncodePayload serializes an action and its arguments for storage.
func EncodePayload(action string, data Data) ([]byte, error) {
	if data == nil {
		data = Data{}
	}
	b, err := json.Marshal(Payload{Action: action, Data: data})
	if err != nil {
		return nil, errors.Join(ErrPayloadEncode, err)
	}
	return b, nil
}

// DecodePayload parses a stored payload. Malformed input and payloads without
// an action are reported as ErrPayloadDecode.
func DecodePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, errors.Join(ErrPayloadDecode, err)
	}
	if p.Action == "" {
		return Payload{}, fmt.Errorf("%w: missing action", ErrPayloadDecode)
	}
	if p.Data == nil {
		p.Data = Data{}
	}
	return p, nil
}

// DecodePayload decodes the task's payload.
func (t *Task) DecodePayload() (Payload, error) {
	return DecodePayload(t.Payload)
}

// SplitAction splits "handler.method" on the first delimiter.
func SplitAction(action string) (handler, method string, err error) {
	handler, method, ok := strings.Cut(action, actionDelimiter)
	if !ok || handler == "" || method == "" {
		return "", "", fmt.Errorf("%w: %q, expected <handler>.<method>", ErrInvalidAction, action)
	}
	return handler, method, nil
}

// Mode is the priority filter applied by the eligibility selector.
type Mode string

const (
	// ModeAll selects any eligible task.
	ModeAll Mode = "all"
	// ModeLow selects eligible tasks with a negative priority only.
	ModeLow Mode = "lo"
	// ModeHigh selects eligible tasks with a non-negative priority only.
	ModeHigh Mode = "hi"
)

// ParseMode converts a string into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Valid reports whether the mode is one of all, lo or hi.
func (m Mode) Valid() bool {
	switch m {
	case ModeAll, ModeLow, ModeHigh:
		return true
	}
	return false
}

// Accepts reports whether a task with the given priority passes the filter.
func (m Mode) Accepts(priority int) bool {
	switch m {
	case ModeLow:
		return priority < 0
	case ModeHigh:
		return priority >= 0
	default:
		return true
	}
}

func (m Mode) String() string {
	return string(m)
}
