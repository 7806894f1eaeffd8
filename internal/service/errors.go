package service

import (
	"errors"
	"fmt"

	"scams/internal/booking"
	"scams/internal/models"
)

var (
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrRateLimited        = errors.New("too many attempts, try again later")
	ErrRoomBusy           = errors.New("room is being booked by someone else, try again")
)

// ValidationError is a user-facing rejection of bad input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports the bookings that block a slot and rooms free at the same time.
type ConflictError struct {
	Result       booking.ConflictResult
	Alternatives []*models.Room
}

func (e *ConflictError) Error() string { return e.Result.Message }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
