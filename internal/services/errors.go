package services

import "errors"

// Failure taxonomy surfaced by the booking services. Handlers map each to a
// distinct HTTP status so clients can tell "retry" from "give up".
var (
	// ErrValidation: malformed or missing input; the store was never touched.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound: a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: ownership or eligibility denial; wrapped with a reason.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict: a duplicate active booking.
	ErrConflict = errors.New("already booked")

	// ErrCapacityExceeded: the slot is full.
	ErrCapacityExceeded = errors.New("slot is fully booked")

	// ErrTransient: a lost optimistic-concurrency race or store timeout.
	// Safe to retry with a fresh read.
	ErrTransient = errors.New("storage conflict, retry")

	// ErrIntegrity: a compensating write failed after its primary write
	// committed. Not retryable; needs operator reconciliation.
	ErrIntegrity = errors.New("data integrity error")
)
