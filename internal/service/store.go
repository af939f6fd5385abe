package service

import (
	"context"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
)

// Queries is the storage surface the engine needs.  Methods named Lock*
// take row locks and are only meaningful inside InTx.  Lookups that miss
// return repository.ErrNotFound.
type Queries interface {
	GetRoom(ctx context.Context, roomID uint64) (model.Room, error)
	LockRoom(ctx context.Context, roomID uint64) (model.Room, error)

	// ListActiveSchedules returns ACTIVE schedule rows on the given date
	// whose reservation is also ACTIVE.
	ListActiveSchedules(ctx context.Context, roomID uint64, date time.Time) ([]model.Schedule, error)

	ReservationCodeExists(ctx context.Context, code string) (bool, error)
	CreateReservation(ctx context.Context, res *model.Reservation) error
	GetReservation(ctx context.Context, id uint64) (model.Reservation, error)
	LockReservation(ctx context.Context, id uint64) (model.Reservation, error)
	UpdateDuration(ctx context.Context, reservationID uint64, minutes int, at time.Time) error
	// TransitionStatus moves a reservation from one status to another and
	// reports false when the row was no longer in the from status.
	TransitionStatus(ctx context.Context, id uint64, from, to model.ReservationStatus, at time.Time) (bool, error)

	CreateSchedule(ctx context.Context, s *model.Schedule) error
	GetActiveSchedule(ctx context.Context, reservationID uint64) (model.Schedule, error)
	ListSchedules(ctx context.Context, reservationID uint64) ([]model.Schedule, error)
	SupersedeSchedule(ctx context.Context, scheduleID uint64) error

	CreateParticipants(ctx context.Context, ps []model.Participant) error
	ListParticipants(ctx context.Context, reservationID uint64) ([]model.Participant, error)
	MarkCheckedIn(ctx context.Context, reservationID, personID uint64, at time.Time) (bool, error)
	// LockPersons serialises roster writers per person until the
	// transaction ends.  It must precede FindActiveMembership so that the
	// membership check and the roster insert cannot interleave with another
	// writer adding the same person elsewhere.
	LockPersons(ctx context.Context, personIDs []uint64) error
	// FindActiveMembership returns the first of personIDs that is a
	// participant of an ACTIVE reservation.
	FindActiveMembership(ctx context.Context, personIDs []uint64) (personID, reservationID uint64, found bool, err error)

	// CompleteDue claims and completes every ACTIVE reservation whose active
	// window ended before now and that is institutional or has an arrival.
	CompleteDue(ctx context.Context, now time.Time) (int64, error)
	// ListForfeitCandidates lists ACTIVE member reservations whose active
	// window started before cutoff and that have no arrival.
	ListForfeitCandidates(ctx context.Context, cutoff time.Time) ([]uint64, error)
	// ClaimForfeit re-checks the forfeiture condition for one reservation
	// and transitions it to FORFEITED, reporting whether this call won.
	ClaimForfeit(ctx context.Context, reservationID uint64, cutoff, at time.Time) (bool, error)

	CountViolationsSince(ctx context.Context, personID uint64, category model.ViolationCategory, since time.Time) (int, error)
	CreateViolation(ctx context.Context, v *model.Violation) error
	ListCoveringViolations(ctx context.Context, personID uint64, at time.Time) ([]model.Violation, error)
}

// Store exposes non-transactional reads through the embedded Queries and
// runs write paths inside a single transaction.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
}

// Notifier delivers a violation notice to the person concerned.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// ScanLock is an advisory lock shared by every process that runs the
// lifecycle scan.
type ScanLock interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, acquired bool, err error)
}

// Notice is the payload handed to the Notifier after a violation commits.
type Notice struct {
	PersonID        uint64
	Severity        int
	Penalty         model.Penalty
	ReservationCode string
	WindowEnd       time.Time
	Reason          string
}
