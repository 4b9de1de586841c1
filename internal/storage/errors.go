package storage

import "errors"

// Sentinel errors shared by the memory, ClickHouse and Postgres backends.
// Callers match these with errors.Is regardless of which backend served
// the request.
var (
	// ErrNotFound is returned when the requested frame, trade, window or
	// alert does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned on an insert that collides with an
	// existing key. Bars, trades, windows and alerts are immutable history,
	// so a collision is rejected rather than overwritten.
	ErrDuplicateKey = errors.New("duplicate key: history records are immutable")

	// ErrInvalidInput is returned when a record fails validation before it
	// reaches the backend.
	ErrInvalidInput = errors.New("invalid input")
)
