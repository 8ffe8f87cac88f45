package domain

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate marks an ingestion that matched an existing fingerprint.
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalidTransition is returned for a draft status change the workflow forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotConfigured is returned when a required capability has no backing implementation.
	ErrNotConfigured = errors.New("not configured")
	// ErrConflict is returned when another run changed a record first.
	ErrConflict = errors.New("conflict")
	// ErrJobAbandoned is recorded on a job whose run stopped while processing it.
	ErrJobAbandoned = errors.New("abandoned while processing")
	// ErrLockHeld is returned when another run owns a scheduler lock.
	ErrLockHeld = errors.New("lock already held")
)
