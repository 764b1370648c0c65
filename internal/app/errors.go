package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrUnknownHolder = errors.New("unknown holder")
	ErrImport        = errors.New("import failed")
	ErrNoSprint      = errors.New("no sprint loaded")
)
