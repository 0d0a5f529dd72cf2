package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TaskID records the task identifier under the key "task_id".
func TaskID(id int64) slog.Attr {
	return slog.Int64("task_id", id)
}

// Action records the task action under the key "action".
func Action(action string) slog.Attr {
	return slog.String("action", action)
}

// Priority records the task priority under the key "priority".
func Priority(p int) slog.Attr {
	return slog.Int("priority", p)
}

// Attempts records how many times a task was dispatched.
func Attempts(n int) slog.Attr {
	return slog.Int("attempts", n)
}

// Mode records the runner selection mode.
func Mode(mode string) slog.Attr {
	return slog.String("mode", mode)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
