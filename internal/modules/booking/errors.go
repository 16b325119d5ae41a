package booking

import "errors"

var (
	// ErrSlotUnavailable: the requested range conflicts with existing
	// bookings or falls outside working hours. Recoverable: the requester
	// picks another slot.
	ErrSlotUnavailable = errors.New("slot unavailable")
	// ErrInvalidTransition: a status precondition was violated. Never
	// swallowed except on the documented stale-timer paths.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBookingNotFound   = errors.New("booking not found")
	// ErrPersistence wraps a failed durable write; the in-memory projection
	// is guaranteed untouched when it is returned.
	ErrPersistence = errors.New("persistence failure")
	// ErrAlreadyBooked: the customer already holds a pending or confirmed
	// booking and must cancel it before making another.
	ErrAlreadyBooked = errors.New("customer already has an active booking")
)
