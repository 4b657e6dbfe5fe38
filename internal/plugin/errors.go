package plugin

import "errors"

var (
	// ErrNotFound is returned when a dispatch names an unknown plugin.
	ErrNotFound = errors.New("plugin not found")

	// ErrUnsupportedAction is returned when the target plugin does not
	// handle web actions.
	ErrUnsupportedAction = errors.New("plugin does not handle web actions")
)
