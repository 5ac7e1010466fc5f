package bundler

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Sink is the logging destination for rendered diagnostics: one channel for
// warnings, one for errors. *slog.Logger satisfies it.
type Sink interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Reporter renders collected diagnostics through esbuild's own formatter and
// forwards the text to a Sink. It defines no formatting rules of its own.
type Reporter struct {
	sink  Sink
	color bool
	width int
}

// NewReporter creates a Reporter writing to sink with colorized output.
func NewReporter(sink Sink) *Reporter {
	return &Reporter{sink: sink, color: true}
}

// WithColor toggles colorized rendering.
func (r *Reporter) WithColor(color bool) *Reporter {
	r.color = color
	return r
}

// WithTerminalWidth sets the wrap width passed to the formatter (0 = auto).
func (r *Reporter) WithTerminalWidth(width int) *Reporter {
	r.width = width
	return r
}

// Report renders and emits the given diagnostics. Warnings are always
// processed before errors. Each non-empty list produces exactly one write to
// its channel: the rendered messages joined by newlines. Empty lists produce
// no write.
func (r *Reporter) Report(warnings, errors []api.Message) {
	if len(warnings) > 0 {
		lines := api.FormatMessages(warnings, api.FormatMessagesOptions{
			Kind:          api.WarningMessage,
			Color:         r.color,
			TerminalWidth: r.width,
		})
		r.sink.Warn(strings.Join(lines, "\n"))
	}
	if len(errors) > 0 {
		lines := api.FormatMessages(errors, api.FormatMessagesOptions{
			Kind:          api.ErrorMessage,
			Color:         r.color,
			TerminalWidth: r.width,
		})
		r.sink.Error(strings.Join(lines, "\n"))
	}
}

// ReportResult is a convenience that forwards a Result's diagnostics:
// warnings plus, for the failure variant, the errors.
func (r *Reporter) ReportResult(res *Result) {
	if res == nil {
		return
	}
	var errs []api.Message
	if res.Failure != nil {
		errs = res.Failure.Errors
	}
	r.Report(res.Warnings, errs)
}
