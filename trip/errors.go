// Package trip provides structured errors for the trajview render pipeline.
//
// A run either completes or trips. Every trip carries the stage it happened
// in (its Kind), a readable message, the underlying cause and enough context
// to reproduce the failure from the log line alone.
package trip

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind names the pipeline stage that failed.
//
// Kinds:
//   - "load": reading or fetching the trajectory table
//   - "convert": a cell could not be turned into a float64
//   - "render": drawing a frame
//   - "sink": appending to or finalizing the output animation
//   - "config": invalid flags or config file
type Kind string

const (
	Load    Kind = "load"
	Convert Kind = "convert"
	Render  Kind = "render"
	Sink    Kind = "sink"
	Config  Kind = "config"
)

// Trip represents a pipeline failure with rich context.
//
// Example usage:
//
//	err := trip.NewFall(trip.Render, "draw legend", cause,
//	    trip.Context{"frame": 12})
//
//	var t *trip.Trip
//	if errors.As(err, &t) && t.IsFall() {
//	    os.Exit(1)
//	}
type Trip struct {
	Kind      Kind      // Pipeline stage
	Message   string    // Human-readable description
	Context   Context   // Additional debugging information
	Err       error     // Underlying cause, may be nil
	Timestamp time.Time // When the trip happened
	Severity  Severity  // How serious this trip is
}

// Context provides structured debugging information for trips.
type Context map[string]interface{}

// Severity indicates how serious a trip is and how it should be handled.
type Severity int

const (
	// Stumble is a side-channel problem that does not affect the output.
	// Examples: progress display failed, metrics file not writable
	Stumble Severity = iota

	// Error is a failure the caller decides about.
	Error

	// Fall aborts the run. Every failure inside the frame loop is a fall.
	Fall
)

func (s Severity) String() string {
	switch s {
	case Stumble:
		return "stumble"
	case Error:
		return "error"
	case Fall:
		return "fall"
	default:
		return "unknown"
	}
}

// New creates a trip with Error severity.
func New(kind Kind, message string, err error, context Context) *Trip {
	return &Trip{
		Kind:      kind,
		Message:   message,
		Context:   context,
		Err:       err,
		Timestamp: time.Now(),
		Severity:  Error,
	}
}

// NewStumble creates a trip with Stumble severity.
func NewStumble(kind Kind, message string, err error, context Context) *Trip {
	return New(kind, message, err, context).WithSeverity(Stumble)
}

// NewFall creates a trip with Fall severity.
func NewFall(kind Kind, message string, err error, context Context) *Trip {
	return New(kind, message, err, context).WithSeverity(Fall)
}

// WithSeverity sets the severity level for this trip.
func (t *Trip) WithSeverity(severity Severity) *Trip {
	t.Severity = severity
	return t
}

// Error implements the error interface.
func (t *Trip) Error() string {
	if t.Err != nil {
		return fmt.Sprintf("%s: %s: %v", t.Kind, t.Message, t.Err)
	}
	return fmt.Sprintf("%s: %s", t.Kind, t.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (t *Trip) Unwrap() error {
	return t.Err
}

// CanRecover returns true if the run can continue despite this trip.
func (t *Trip) CanRecover() bool {
	return t.Severity == Stumble
}

// IsFall returns true if this trip must stop the run.
func (t *Trip) IsFall() bool {
	return t.Severity == Fall
}

// GetContext returns a specific context value if it exists.
func (t *Trip) GetContext(key string) (interface{}, bool) {
	if t.Context == nil {
		return nil, false
	}
	val, exists := t.Context[key]
	return val, exists
}

// LogAttrs flattens the trip into slog-style key/value pairs, context keys sorted.
func (t *Trip) LogAttrs() []any {
	attrs := []any{"kind", string(t.Kind), "severity", t.Severity.String()}
	keys := make([]string, 0, len(t.Context))
	for k := range t.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, t.Context[k])
	}
	if t.Err != nil {
		attrs = append(attrs, "error", t.Err.Error())
	}
	return attrs
}

// DetailedString returns a comprehensive description with context.
func (t *Trip) DetailedString() string {
	var details strings.Builder

	details.WriteString(fmt.Sprintf("[%s:%s] %s", t.Kind, t.Severity, t.Message))
	details.WriteString(fmt.Sprintf("\n  Time: %s", t.Timestamp.Format("15:04:05.000")))
	if t.Err != nil {
		details.WriteString(fmt.Sprintf("\n  Cause: %v", t.Err))
	}

	if len(t.Context) > 0 {
		keys := make([]string, 0, len(t.Context))
		for k := range t.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		details.WriteString("\n  Context:")
		for _, key := range keys {
			details.WriteString(fmt.Sprintf("\n    %s: %v", key, t.Context[key]))
		}
	}

	return details.String()
}

// KindOf reports the kind of the first trip in err's chain.
func KindOf(err error) (Kind, bool) {
	var t *Trip
	if errors.As(err, &t) {
		return t.Kind, true
	}
	return "", false
}

// IsFall reports whether err carries a fall anywhere in its chain.
func IsFall(err error) bool {
	var t *Trip
	return errors.As(err, &t) && t.IsFall()
}
