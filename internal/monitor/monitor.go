// Package monitor is the gateway's error-capture collaborator. It is
// strictly best-effort: a capture must never block or fail the
// operation that triggered it.
package monitor

import "github.com/rs/zerolog"

// Level is the severity attached to a captured failure.
type Level string

const (
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event carries tags and context for a captured error.
type Event struct {
	Tags  map[string]string
	Extra map[string]any
	Level Level
}

// Notifier receives failed operations. Implementations must be
// non-blocking and must swallow their own failures.
type Notifier interface {
	CaptureException(err error, event Event)
}

// LogNotifier reports captures through a structured logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a Notifier writing to the given logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) CaptureException(err error, event Event) {
	evt := n.logger.Warn()
	if event.Level == LevelError {
		evt = n.logger.Error()
	}
	evt = evt.Err(err)
	for k, v := range event.Tags {
		evt = evt.Str(k, v)
	}
	if len(event.Extra) > 0 {
		evt = evt.Interface("extra", event.Extra)
	}
	evt.Msg("captured exception")
}

// Nop discards all captures.
type Nop struct{}

func (Nop) CaptureException(error, Event) {}
