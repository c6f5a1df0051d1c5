package telemetry

import "go.uber.org/zap/zapcore"

// Severity is the coarse bucket derived from an HTTP status.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// SeverityForStatus maps 5xx to error, 4xx to warning and anything else to
// info.
func SeverityForStatus(status int) Severity {
	switch {
	case status >= 500 && status < 600:
		return SeverityError
	case status >= 400 && status < 500:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// StatusRange returns "2xx" through "5xx", or "other".
func StatusRange(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func (s Severity) Level() zapcore.Level {
	switch s {
	case SeverityError:
		return zapcore.ErrorLevel
	case SeverityWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
