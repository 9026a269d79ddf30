package model

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no component.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguousMatch is returned when a lookup matches more than one component.
	ErrAmbiguousMatch = errors.New("ambiguous match")
	// ErrIndexUnavailable is returned when the backing tables are missing or unreachable.
	ErrIndexUnavailable = errors.New("index unavailable")
)
