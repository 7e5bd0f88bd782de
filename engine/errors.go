package engine

import "errors"

var (
	// ErrValidation rejects a malformed strategy config before any state change.
	ErrValidation = errors.New("engine: invalid strategy config")

	// ErrAlreadyRunning rejects Start for an id that already has a handle.
	ErrAlreadyRunning = errors.New("engine: strategy already registered")

	// ErrInvalidTransition rejects a lifecycle event the state machine does
	// not permit, such as resuming a stopped strategy.
	ErrInvalidTransition = errors.New("engine: invalid state transition")

	// ErrUnknownStrategy rejects operations on ids the manager has never seen.
	ErrUnknownStrategy = errors.New("engine: unknown strategy id")
)
