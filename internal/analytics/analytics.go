// Package analytics records app events and API call outcomes.
//
// Everything here is best-effort: failures are logged and swallowed, and
// never affect the primary action's result.
package analytics

import (
	"time"

	"github.com/bookyo/client/internal/logging"
)

// Recorder records analytics events.
type Recorder interface {
	// TrackAPICall records the outcome of a remote call.
	TrackAPICall(endpoint string, success bool, duration time.Duration, errorType, errorMessage string)

	// RecordEvent records a named app event.
	RecordEvent(name string, properties map[string]string)
}

// LogRecorder writes events to the structured log. It stands in for the
// managed analytics transport, which shares its swallow-all contract.
type LogRecorder struct{}

// NewLogRecorder creates a LogRecorder.
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

func (r *LogRecorder) TrackAPICall(endpoint string, success bool, duration time.Duration, errorType, errorMessage string) {
	ctx := map[string]interface{}{
		"event":       "api_call",
		"endpoint":    endpoint,
		"status":      status(success),
		"duration_ms": duration.Milliseconds(),
	}
	if errorType != "" {
		ctx["error_type"] = errorType
	}
	if errorMessage != "" {
		ctx["error_message"] = errorMessage
	}
	logging.Info("analytics", ctx)
}

func (r *LogRecorder) RecordEvent(name string, properties map[string]string) {
	ctx := map[string]interface{}{"event": name}
	for k, v := range properties {
		ctx[k] = v
	}
	logging.Info("analytics", ctx)
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Nop discards all events.
type Nop struct{}

func (Nop) TrackAPICall(string, bool, time.Duration, string, string) {}

func (Nop) RecordEvent(string, map[string]string) {}
