// Package notify delivers care-team events to chat platforms (Slack,
// Discord, etc.).
package notify

import "context"

// Event is a notification formatted for display in chat.
type Event struct {
	Title    string  // headline (e.g. "Appointment reminder")
	Body     string  // detail text
	Severity string  // "info", "warning", "error"
	Color    string  // sidebar color hint (e.g. "#36a64f")
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Notifier is the interface that platform-specific implementations must
// satisfy. Delivery is one-way; the implementations own connection
// management and formatting.
type Notifier interface {
	// Name identifies the platform for logging (e.g. "slack").
	Name() string

	// Send delivers one event.
	Send(ctx context.Context, ev Event) error
}

// Severity colors shared by the platform implementations.
const (
	ColorInfo    = "#439fe0"
	ColorWarning = "#f2c744"
	ColorError   = "#d72b3f"
)

// SeverityColor maps a severity to its sidebar color, defaulting to info.
func SeverityColor(severity string) string {
	switch severity {
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}
