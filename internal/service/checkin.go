package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
)

// ArrivalState aggregates the check-ins of a reservation roster.
type ArrivalState string

const (
	ArrivalNone ArrivalState = "NONE"
	ArrivalSome ArrivalState = "SOME"
	ArrivalAll  ArrivalState = "ALL"
	// ArrivalNotApplicable is reported for institutional reservations, which
	// have no roster.  It counts as an arrival for completion and never as
	// "no arrival" for forfeiture.
	ArrivalNotApplicable ArrivalState = "NOT_APPLICABLE"
)

// HasArrival reports whether the state satisfies the completion rule.
func (s ArrivalState) HasArrival() bool {
	return s == ArrivalSome || s == ArrivalAll || s == ArrivalNotApplicable
}

// NoArrival reports whether the state satisfies the forfeiture rule.
func (s ArrivalState) NoArrival() bool { return s == ArrivalNone }

// CheckIn records the arrival of a participant.  Checking in twice is a
// successful no-op that keeps the first timestamp.
func (e *Engine) CheckIn(ctx context.Context, reservationID, personID uint64) (*model.Participant, error) {
	log := e.opLogger("check_in", zap.Uint64("reservation_id", reservationID), zap.Uint64("person_id", personID))
	now := e.clock()

	var out model.Participant
	err := e.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		res, err := q.LockReservation(ctx, reservationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		participants, err := q.ListParticipants(ctx, res.ID)
		if err != nil {
			return err
		}
		idx := -1
		for i, p := range participants {
			if p.PersonID == personID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotParticipant
		}
		out = participants[idx]
		if out.CheckedIn {
			return nil
		}
		if res.Status != model.StatusActive {
			return ErrNotActive
		}
		if countArrivals(participants) == 0 {
			if err := e.checkGrace(ctx, q, res.ID, now); err != nil {
				return err
			}
		}
		if _, err := q.MarkCheckedIn(ctx, res.ID, personID, now); err != nil {
			return err
		}
		out.CheckedIn = true
		out.CheckedInAt = &now
		return nil
	})
	if err != nil {
		logOutcome(log, err, "check-in")
		return nil, err
	}
	logOutcome(log, nil, "participant checked in")
	return &out, nil
}

// checkGrace rejects the first arrival once the reservation meets the
// forfeiture condition.  The boundary matches the scan: start + grace ==
// now is still in time.
func (e *Engine) checkGrace(ctx context.Context, q Queries, reservationID uint64, now time.Time) error {
	s, err := q.GetActiveSchedule(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if s.Window.StartAt().Before(now.Add(-e.policy.GracePeriod)) {
		return ErrCheckInClosed
	}
	return nil
}

// ArrivalState returns the aggregate arrival state of a reservation.
func (e *Engine) ArrivalState(ctx context.Context, reservationID uint64) (ArrivalState, error) {
	res, err := e.store.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrReservationNotFound
		}
		return "", err
	}
	if res.IsInstitutional() {
		return ArrivalNotApplicable, nil
	}
	participants, err := e.store.ListParticipants(ctx, reservationID)
	if err != nil {
		return "", err
	}
	return arrivalOf(participants), nil
}

// GetBooking loads a reservation with its active window and roster.
func (e *Engine) GetBooking(ctx context.Context, reservationID uint64) (*Booking, error) {
	res, err := e.store.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	b := &Booking{Reservation: res}
	s, err := e.store.GetActiveSchedule(ctx, reservationID)
	switch {
	case err == nil:
		b.Schedule = &s
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	if b.Participants, err = e.store.ListParticipants(ctx, reservationID); err != nil {
		return nil, err
	}
	return b, nil
}

func arrivalOf(participants []model.Participant) ArrivalState {
	n := countArrivals(participants)
	switch {
	case n == 0:
		return ArrivalNone
	case n == len(participants):
		return ArrivalAll
	default:
		return ArrivalSome
	}
}

func countArrivals(participants []model.Participant) int {
	n := 0
	for _, p := range participants {
		if p.CheckedIn {
			n++
		}
	}
	return n
}
