package service

import "errors"

var (
	// ErrValidation indicates the caller supplied insufficient or
	// malformed input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrRunActive indicates another consolidation or alignment run holds
	// the subsystem's run lock.
	ErrRunActive = errors.New("run already in progress")
)
