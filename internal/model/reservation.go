package model

import (
	"fmt"
	"time"
)

// ReservationStatus is the lifecycle state of a reservation.  ACTIVE is the
// only non-terminal state.
type ReservationStatus string

const (
	StatusActive    ReservationStatus = "ACTIVE"
	StatusCompleted ReservationStatus = "COMPLETED"
	StatusCancelled ReservationStatus = "CANCELLED"
	StatusForfeited ReservationStatus = "FORFEITED"
)

var statusTransitions = map[ReservationStatus][]ReservationStatus{
	StatusActive:    {StatusCompleted, StatusCancelled, StatusForfeited},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusForfeited: {},
}

// ParseReservationStatus converts a stored column value into a status.
func ParseReservationStatus(s string) (ReservationStatus, error) {
	st := ReservationStatus(s)
	if _, ok := statusTransitions[st]; !ok {
		return "", fmt.Errorf("unknown reservation status %q", s)
	}
	return st, nil
}

// IsValid reports whether s is one of the declared statuses.
func (s ReservationStatus) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s ReservationStatus) IsTerminal() bool {
	next, ok := statusTransitions[s]
	return !ok || len(next) == 0
}

// CanTransitionTo reports whether moving from s to target is allowed.
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	for _, t := range statusTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Reservation records a booking of a room.  A reservation either carries an
// institution name (no participant roster) or has exactly one leader in its
// roster.
//
// Fields:
//  ID              – primary key identifier.
//  Code            – unique human readable booking code.
//  RoomID          – room being reserved.
//  BookedBy        – person who submitted the reservation.
//  DurationMinutes – length of the current active window in minutes.
//  Status          – lifecycle state.
//  InstitutionName – sponsoring organisation (nil for member reservations).
//  AttachmentRef   – opaque reference to an uploaded document, if any.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Reservation struct {
	ID              uint64            // reservations.id
	Code            string            // reservations.code
	RoomID          uint64            // reservations.room_id
	BookedBy        uint64            // reservations.booked_by
	DurationMinutes int               // reservations.duration_minutes
	Status          ReservationStatus // reservations.status
	InstitutionName *string           // reservations.institution_name (nullable)
	AttachmentRef   *string           // reservations.attachment_ref (nullable)
	CreatedAt       time.Time         // reservations.created_at
	UpdatedAt       time.Time         // reservations.updated_at
}

// IsInstitutional reports whether the reservation is sponsored by an
// organisation and therefore has no roster.
func (r Reservation) IsInstitutional() bool {
	return r.InstitutionName != nil && *r.InstitutionName != ""
}
