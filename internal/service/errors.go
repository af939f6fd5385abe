package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
)

// Validation errors are returned before any write.
var (
	ErrInvalidWindow      = errors.New("invalid time window")
	ErrCapacityOutOfRange = errors.New("roster size outside room capacity")
	ErrInvalidRoster      = errors.New("invalid participant roster")
)

// Conflict errors are returned at the transactional boundary; callers retry
// with different input.
var (
	ErrTimeConflict           = errors.New("time window conflicts with an existing reservation")
	ErrResourceUnavailable    = errors.New("room does not accept this reservation")
	ErrAlreadyActiveElsewhere = errors.New("person already belongs to an active reservation")
)

// Policy errors carry an explicit payload (see the typed errors below).
var (
	ErrBlocked             = errors.New("person is blocked from making reservations")
	ErrTooLateToReschedule = errors.New("too late to reschedule")
	ErrAlreadyCheckedIn    = errors.New("a participant has already checked in")
)

// Lookup and state errors.
var (
	ErrRoomNotFound          = errors.New("room not found")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrNotParticipant        = errors.New("person is not a participant of this reservation")
	ErrNotOwner              = errors.New("person does not own this reservation")
	ErrNotActive             = errors.New("reservation is not active")
	ErrNoActiveSchedule      = errors.New("reservation has no active time window")
	ErrWindowAlreadyAssigned = errors.New("reservation already has a time window")
	ErrCheckInClosed         = errors.New("check-in closed: grace period elapsed with no arrival")
)

// Integrity failures.
var (
	ErrCodeExhausted = errors.New("could not allocate a unique reservation code")
	ErrIntegrity     = errors.New("storage constraint violated by a concurrent write")
)

// RestrictionError is returned when the requester is inside an active block
// or suspension window.
type RestrictionError struct {
	Restriction Restriction
}

func (e *RestrictionError) Error() string {
	return fmt.Sprintf("%s until %s: %s", ErrBlocked, e.Restriction.Until.Format(time.RFC3339), e.Restriction.Reason)
}

func (e *RestrictionError) Unwrap() error { return ErrBlocked }

// TooLateError reports the last instant at which a reschedule was allowed.
type TooLateError struct {
	Cutoff time.Time
}

func (e *TooLateError) Error() string {
	return fmt.Sprintf("%s: cutoff was %s", ErrTooLateToReschedule, e.Cutoff.Format(time.RFC3339))
}

func (e *TooLateError) Unwrap() error { return ErrTooLateToReschedule }

// ConflictError identifies the schedule row that blocks the requested window.
type ConflictError struct {
	ReservationID uint64
	Window        model.Window
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s (reservation %d, %s)", ErrTimeConflict, e.ReservationID, e.Window)
}

func (e *ConflictError) Unwrap() error { return ErrTimeConflict }

// ActiveElsewhereError names the roster member that already holds an active
// reservation.
type ActiveElsewhereError struct {
	PersonID      uint64
	ReservationID uint64
}

func (e *ActiveElsewhereError) Error() string {
	return fmt.Sprintf("%s (person %d, reservation %d)", ErrAlreadyActiveElsewhere, e.PersonID, e.ReservationID)
}

func (e *ActiveElsewhereError) Unwrap() error { return ErrAlreadyActiveElsewhere }

// ErrorKind maps engine errors to a stable label used in logs and by the
// HTTP layer.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidWindow), errors.Is(err, ErrCapacityOutOfRange), errors.Is(err, ErrInvalidRoster):
		return "validation"
	case errors.Is(err, ErrTimeConflict), errors.Is(err, ErrResourceUnavailable), errors.Is(err, ErrAlreadyActiveElsewhere):
		return "conflict"
	case errors.Is(err, ErrBlocked), errors.Is(err, ErrTooLateToReschedule), errors.Is(err, ErrAlreadyCheckedIn):
		return "policy"
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrNotParticipant):
		return "forbidden"
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrReservationNotFound):
		return "not_found"
	case errors.Is(err, ErrNotActive), errors.Is(err, ErrNoActiveSchedule), errors.Is(err, ErrWindowAlreadyAssigned), errors.Is(err, ErrCheckInClosed):
		return "state"
	case errors.Is(err, ErrCodeExhausted), errors.Is(err, ErrIntegrity):
		return "integrity"
	}
	return "unexpected"
}
