package rules

import "fmt"

// ValidationError reports a task document that must not reach storage.
// It covers parse/save-time problems and apply-time range violations.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// validationf builds a ValidationError.
func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ApplyError reports a single rule failing at apply time. The failure is
// isolated to that rule; surrounding rules are unaffected unless the
// caller requested stop-on-error.
type ApplyError struct {
	// Path is the resolved target file, when known.
	Path string

	// NotFound is set when the target file does not exist.
	NotFound bool

	msg string
}

func (e *ApplyError) Error() string { return e.msg }

// applyf builds an ApplyError for the given target path.
func applyf(path string, format string, args ...any) *ApplyError {
	return &ApplyError{Path: path, msg: fmt.Sprintf(format, args...)}
}
