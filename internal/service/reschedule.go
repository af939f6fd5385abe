package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
)

// RescheduleParams is the input of Reschedule.  ActorID must be the person
// who booked the reservation.
type RescheduleParams struct {
	ReservationID uint64
	ActorID       uint64
	Window        model.Window
	Reason        string
}

// Reschedule supersedes the active window of a reservation with a new one.
// The old row is kept as history.
func (e *Engine) Reschedule(ctx context.Context, p RescheduleParams) (*model.Schedule, error) {
	log := e.opLogger("reschedule", zap.Uint64("reservation_id", p.ReservationID), zap.Uint64("actor_id", p.ActorID))
	now := e.clock()
	w := e.anchor(p.Window)

	var created *model.Schedule
	err := e.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		res, err := lockOwnedReservation(ctx, q, p.ReservationID, p.ActorID)
		if err != nil {
			return err
		}
		current, err := q.GetActiveSchedule(ctx, res.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNoActiveSchedule
			}
			return err
		}
		participants, err := q.ListParticipants(ctx, res.ID)
		if err != nil {
			return err
		}
		if countArrivals(participants) > 0 {
			return ErrAlreadyCheckedIn
		}
		cutoff := current.Window.StartAt().Add(-e.policy.RescheduleLead)
		if now.After(cutoff) {
			return &TooLateError{Cutoff: cutoff}
		}
		if err := validateWindow(w, now); err != nil {
			return err
		}
		if _, err := q.LockRoom(ctx, res.RoomID); err != nil {
			return err
		}
		if err := checkConflict(ctx, q, res.RoomID, w, res.ID); err != nil {
			return err
		}
		if err := q.SupersedeSchedule(ctx, current.ID); err != nil {
			return err
		}
		s := model.Schedule{
			ReservationID: res.ID,
			Window:        w,
			VersionStatus: model.VersionActive,
			CreatedAt:     now,
		}
		if reason := strings.TrimSpace(p.Reason); reason != "" {
			s.RescheduleReason = &reason
		}
		if err := q.CreateSchedule(ctx, &s); err != nil {
			return mapWriteError(err)
		}
		if err := q.UpdateDuration(ctx, res.ID, w.Minutes(), now); err != nil {
			return err
		}
		created = &s
		return nil
	})
	if err != nil {
		logOutcome(log, err, "reschedule")
		return nil, err
	}
	logOutcome(log, nil, "reservation rescheduled", zap.Stringer("window", w))
	return created, nil
}

// AssignWindow gives an institutional reservation created without a time
// window its first window.
func (e *Engine) AssignWindow(ctx context.Context, reservationID, actorID uint64, window model.Window) (*model.Schedule, error) {
	log := e.opLogger("assign_window", zap.Uint64("reservation_id", reservationID), zap.Uint64("actor_id", actorID))
	now := e.clock()
	w := e.anchor(window)

	var created *model.Schedule
	err := e.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		res, err := lockOwnedReservation(ctx, q, reservationID, actorID)
		if err != nil {
			return err
		}
		if _, err := q.GetActiveSchedule(ctx, res.ID); err == nil {
			return ErrWindowAlreadyAssigned
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := validateWindow(w, now); err != nil {
			return err
		}
		if _, err := q.LockRoom(ctx, res.RoomID); err != nil {
			return err
		}
		if err := checkConflict(ctx, q, res.RoomID, w, res.ID); err != nil {
			return err
		}
		s := model.Schedule{
			ReservationID: res.ID,
			Window:        w,
			VersionStatus: model.VersionActive,
			CreatedAt:     now,
		}
		if err := q.CreateSchedule(ctx, &s); err != nil {
			return mapWriteError(err)
		}
		if err := q.UpdateDuration(ctx, res.ID, w.Minutes(), now); err != nil {
			return err
		}
		created = &s
		return nil
	})
	if err != nil {
		logOutcome(log, err, "window assignment")
		return nil, err
	}
	logOutcome(log, nil, "window assigned", zap.Stringer("window", w))
	return created, nil
}

// History lists every schedule version of a reservation, oldest first.
func (e *Engine) History(ctx context.Context, reservationID uint64) ([]model.Schedule, error) {
	if _, err := e.store.GetReservation(ctx, reservationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return e.store.ListSchedules(ctx, reservationID)
}

// lockOwnedReservation locks an ACTIVE reservation booked by actorID.
func lockOwnedReservation(ctx context.Context, q Queries, reservationID, actorID uint64) (model.Reservation, error) {
	res, err := q.LockReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Reservation{}, ErrReservationNotFound
		}
		return model.Reservation{}, err
	}
	if res.BookedBy != actorID {
		return model.Reservation{}, ErrNotOwner
	}
	if res.Status != model.StatusActive {
		return model.Reservation{}, ErrNotActive
	}
	return res, nil
}
