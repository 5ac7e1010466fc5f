package bundler

import (
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

// Failure is the structured outcome of a failed build: diagnostics only, no
// output files. A Failure is returned as a normal result value so callers can
// tell "the build failed" apart from "the adapter broke".
type Failure struct {
	Errors   []api.Message
	Warnings []api.Message
}

// Error implements the error interface so a Failure can also travel through
// error-shaped plumbing (plugin aborts, session construction).
func (f *Failure) Error() string {
	if len(f.Errors) == 1 {
		return f.Errors[0].Text
	}
	return fmt.Sprintf("build failed with %d errors", len(f.Errors))
}

// ErrorMessages returns the error diagnostics.
func (f *Failure) ErrorMessages() []api.Message { return f.Errors }

// WarningMessages returns the warning diagnostics.
func (f *Failure) WarningMessages() []api.Message { return f.Warnings }

// failureShape is the structural contract a value must satisfy to count as a
// build failure: it has to carry both an error list and a warning list.
type failureShape interface {
	ErrorMessages() []api.Message
	WarningMessages() []api.Message
}

// AsFailure classifies an arbitrary recovered value. It returns the value as
// a *Failure if and only if the value is non-nil and carries both error and
// warning diagnostic lists. Anything else (plain errors, strings, panics from
// broken plugins) is not a build failure and must propagate unchanged.
func AsFailure(v any) (*Failure, bool) {
	switch f := v.(type) {
	case nil:
		return nil, false
	case *Failure:
		if f == nil {
			return nil, false
		}
		return f, true
	case Failure:
		return &f, true
	case failureShape:
		return &Failure{Errors: f.ErrorMessages(), Warnings: f.WarningMessages()}, true
	}
	return nil, false
}

// Abort aborts the in-flight build from inside a plugin callback by raising a
// structured Failure. The invoker recovers exactly this shape and converts it
// into the Failure result variant.
func Abort(errors, warnings []api.Message) {
	panic(&Failure{Errors: errors, Warnings: warnings})
}
