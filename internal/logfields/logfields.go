package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID     = "build_id"
	KeyTrigger     = "trigger"
	KeyEntry       = "entry"
	KeyOutputs     = "outputs"
	KeyOutputBytes = "output_bytes"
	KeyDurationMS  = "duration_ms"
	KeyErrors      = "errors"
	KeyWarnings    = "warnings"
	KeyPath        = "path"
	KeySubject     = "subject"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func Entry(e string) slog.Attr        { return slog.String(KeyEntry, e) }
func Outputs(n int) slog.Attr         { return slog.Int(KeyOutputs, n) }
func OutputBytes(n int64) slog.Attr   { return slog.Int64(KeyOutputBytes, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func ErrorCount(n int) slog.Attr      { return slog.Int(KeyErrors, n) }
func WarningCount(n int) slog.Attr    { return slog.Int(KeyWarnings, n) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
