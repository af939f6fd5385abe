package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
)

// Overlaps reports whether two half-open windows intersect.  Windows on
// different dates never overlap and touching endpoints do not overlap.
func Overlaps(a, b model.Window) bool {
	return a.SameDate(b) && a.Start < b.End && b.Start < a.End
}

// FindConflict returns the first existing ACTIVE row that overlaps the
// candidate window, ignoring rows of the excluded reservation (0 excludes
// nothing).
func FindConflict(existing []model.Schedule, candidate model.Window, exclude uint64) (model.Schedule, bool) {
	for _, s := range existing {
		if s.VersionStatus != model.VersionActive {
			continue
		}
		if exclude != 0 && s.ReservationID == exclude {
			continue
		}
		if Overlaps(s.Window, candidate) {
			return s, true
		}
	}
	return model.Schedule{}, false
}

// checkConflict runs the conflict check inside the caller's transaction.
// The room row must already be locked by the caller.
func checkConflict(ctx context.Context, q Queries, roomID uint64, w model.Window, exclude uint64) error {
	existing, err := q.ListActiveSchedules(ctx, roomID, w.Date)
	if err != nil {
		return err
	}
	if hit, ok := FindConflict(existing, w, exclude); ok {
		return &ConflictError{ReservationID: hit.ReservationID, Window: hit.Window}
	}
	return nil
}

// Availability is the read-only answer to an availability query.
type Availability struct {
	Available bool
	Conflict  *model.Schedule
}

// CheckAvailability reports whether the window is free on the room.  The
// answer is advisory; writers re-check under a room lock.
func (e *Engine) CheckAvailability(ctx context.Context, roomID uint64, w model.Window, exclude uint64) (Availability, error) {
	w = e.anchor(w)
	if err := validateShape(w); err != nil {
		return Availability{}, err
	}
	if _, err := e.store.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Availability{}, ErrRoomNotFound
		}
		return Availability{}, err
	}
	existing, err := e.store.ListActiveSchedules(ctx, roomID, w.Date)
	if err != nil {
		return Availability{}, err
	}
	if hit, ok := FindConflict(existing, w, exclude); ok {
		return Availability{Available: false, Conflict: &hit}, nil
	}
	return Availability{Available: true}, nil
}

// anchor re-expresses the window date as midnight in the engine location.
func (e *Engine) anchor(w model.Window) model.Window {
	if w.Date.IsZero() {
		return w
	}
	y, m, d := w.Date.Date()
	w.Date = time.Date(y, m, d, 0, 0, 0, 0, e.policy.Location)
	return w
}

func validateShape(w model.Window) error {
	if w.Date.IsZero() || !w.Start.Valid() || !w.End.Valid() || w.End <= w.Start {
		return ErrInvalidWindow
	}
	return nil
}

// validateWindow rejects malformed windows and windows that already started.
func validateWindow(w model.Window, now time.Time) error {
	if err := validateShape(w); err != nil {
		return err
	}
	if !w.StartAt().After(now) {
		return ErrInvalidWindow
	}
	return nil
}
