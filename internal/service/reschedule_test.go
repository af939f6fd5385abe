package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
)

func TestRescheduleKeepsHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.book(t, win(9, 0, 10, 0), 100, 101)

	s, err := f.engine.Reschedule(ctx, RescheduleParams{
		ReservationID: b.Reservation.ID, ActorID: 100, Window: win(11, 0, 13, 0), Reason: " lecturer late ",
	})
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if s.VersionStatus != model.VersionActive || s.RescheduleReason == nil || *s.RescheduleReason != "lecturer late" {
		t.Fatalf("new schedule = %+v", s)
	}

	history, err := f.engine.History(ctx, b.Reservation.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d rows, want 2", len(history))
	}
	if history[0].VersionStatus != model.VersionSuperseded || history[0].Window.Start != model.NewTimeOfDay(9, 0, 0) {
		t.Fatalf("old row = %+v", history[0])
	}
	if history[1].VersionStatus != model.VersionActive || history[1].Window.End != model.NewTimeOfDay(13, 0, 0) {
		t.Fatalf("new row = %+v", history[1])
	}

	res, _ := f.store.GetReservation(ctx, b.Reservation.ID)
	if res.DurationMinutes != 120 {
		t.Fatalf("duration = %d, want 120", res.DurationMinutes)
	}

	// The old window is free again.
	f.book(t, win(9, 0, 10, 0), 200)
}

func TestRescheduleMayOverlapItsOwnWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.book(t, win(9, 0, 10, 0), 100)

	if _, err := f.engine.Reschedule(ctx, RescheduleParams{
		ReservationID: b.Reservation.ID, ActorID: 100, Window: win(9, 30, 10, 30),
	}); err != nil {
		t.Fatalf("Reschedule over own window: %v", err)
	}
}

func TestRescheduleRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("too late", func(t *testing.T) {
		f := newFixture(t)
		b := f.book(t, win(9, 0, 10, 0), 100)
		f.clock.Set(at(8, 1))

		_, err := f.engine.Reschedule(ctx, RescheduleParams{ReservationID: b.Reservation.ID, ActorID: 100, Window: win(11, 0, 12, 0)})
		var tl *TooLateError
		if !errors.As(err, &tl) {
			t.Fatalf("expected *TooLateError, got %v", err)
		}
		if !tl.Cutoff.Equal(at(8, 0)) {
			t.Fatalf("cutoff = %s, want 08:00", tl.Cutoff)
		}
	})

	t.Run("exactly at the cutoff", func(t *testing.T) {
		f := newFixture(t)
		b := f.book(t, win(9, 0, 10, 0), 100)
		f.clock.Set(at(8, 0))

		if _, err := f.engine.Reschedule(ctx, RescheduleParams{ReservationID: b.Reservation.ID, ActorID: 100, Window: win(11, 0, 12, 0)}); err != nil {
			t.Fatalf("reschedule at cutoff: %v", err)
		}
	})

	t.Run("already checked in", func(t *testing.T) {
		f := newFixture(t)
		b := f.book(t, win(9, 0, 10, 0), 100, 101)
		if _, err := f.engine.CheckIn(ctx, b.Reservation.ID, 101); err != nil {
			t.Fatalf("CheckIn: %v", err)
		}
		_, err := f.engine.Reschedule(ctx, RescheduleParams{ReservationID: b.Reservation.ID, ActorID: 100, Window: win(11, 0, 12, 0)})
		if !errors.Is(err, ErrAlreadyCheckedIn) {
			t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
		}
	})

	t.Run("conflict with another reservation", func(t *testing.T) {
		f := newFixture(t)
		b := f.book(t, win(9, 0, 10, 0), 100)
		other := f.book(t, win(11, 0, 12, 0), 200)

		_, err := f.engine.Reschedule(ctx, RescheduleParams{ReservationID: b.Reservation.ID, ActorID: 100, Window: win(11, 30, 12, 30)})
		var ce *ConflictError
		if !errors.As(err, &ce) || ce.ReservationID != other.Reservation.ID {
			t.Fatalf("expected conflict with %d, got %v", other.Reservation.ID, err)
		}
		cur, _ := f.store.GetActiveSchedule(ctx, b.Reservation.ID)
		if cur.Window.Start != model.NewTimeOfDay(9, 0, 0) {
			t.Fatalf("failed reschedule changed the active window to %s", cur.Window)
		}
	})

	t.Run("window in the past", func(t *testing.T) {
		f := newFixture(t)
		b := f.book(t, win(9, 0, 10, 0), 100)
		_, err := f.engine.Reschedule(ctx, RescheduleParams{ReservationID: b.Reservation.ID, ActorID: 100, Window: win(6, 0, 6, 30)})
		if !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("expected ErrInvalidWindow, got %v", err)
		}
	})

	t.Run("not the owner", func(t *testing.T) {
		f := newFixture(t)
		b := f.book(t, win(9, 0, 10, 0), 100, 101)
		_, err := f.engine.Reschedule(ctx, RescheduleParams{ReservationID: b.Reservation.ID, ActorID: 101, Window: win(11, 0, 12, 0)})
		if !errors.Is(err, ErrNotOwner) || ErrorKind(err) != "forbidden" {
			t.Fatalf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("not active", func(t *testing.T) {
		f := newFixture(t)
		b := f.book(t, win(9, 0, 10, 0), 100)
		if err := f.engine.Cancel(ctx, b.Reservation.ID, 100); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		_, err := f.engine.Reschedule(ctx, RescheduleParams{ReservationID: b.Reservation.ID, ActorID: 100, Window: win(11, 0, 12, 0)})
		if !errors.Is(err, ErrNotActive) {
			t.Fatalf("expected ErrNotActive, got %v", err)
		}
	})

	t.Run("unknown reservation", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.Reschedule(ctx, RescheduleParams{ReservationID: 42, ActorID: 100, Window: win(11, 0, 12, 0)})
		if !errors.Is(err, ErrReservationNotFound) {
			t.Fatalf("expected ErrReservationNotFound, got %v", err)
		}
	})

	t.Run("no window yet", func(t *testing.T) {
		f := newFixture(t)
		b, err := f.engine.CreateReservation(ctx, CreateReservationParams{RoomID: 1, LeaderID: 100, InstitutionName: "Faculty"})
		if err != nil {
			t.Fatalf("CreateReservation: %v", err)
		}
		_, err = f.engine.Reschedule(ctx, RescheduleParams{ReservationID: b.Reservation.ID, ActorID: 100, Window: win(11, 0, 12, 0)})
		if !errors.Is(err, ErrNoActiveSchedule) {
			t.Fatalf("expected ErrNoActiveSchedule, got %v", err)
		}
	})
}

func TestAssignWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b, err := f.engine.CreateReservation(ctx, CreateReservationParams{RoomID: 1, LeaderID: 100, InstitutionName: "Faculty"})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	taken := f.book(t, win(9, 0, 10, 0), 200)

	_, err = f.engine.AssignWindow(ctx, b.Reservation.ID, 100, win(9, 30, 10, 30))
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.ReservationID != taken.Reservation.ID {
		t.Fatalf("expected conflict, got %v", err)
	}

	s, err := f.engine.AssignWindow(ctx, b.Reservation.ID, 100, win(14, 0, 16, 0))
	if err != nil {
		t.Fatalf("AssignWindow: %v", err)
	}
	if s.RescheduleReason != nil || s.VersionStatus != model.VersionActive {
		t.Fatalf("assigned schedule = %+v", s)
	}
	got, err := f.engine.GetBooking(ctx, b.Reservation.ID)
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if got.Schedule == nil || got.Reservation.DurationMinutes != 120 {
		t.Fatalf("booking after assignment = %+v", got)
	}

	if _, err := f.engine.AssignWindow(ctx, b.Reservation.ID, 100, win(17, 0, 18, 0)); !errors.Is(err, ErrWindowAlreadyAssigned) {
		t.Fatalf("expected ErrWindowAlreadyAssigned, got %v", err)
	}
	if _, err := f.engine.AssignWindow(ctx, b.Reservation.ID, 999, win(17, 0, 18, 0)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	// Once assigned, the institutional window moves through Reschedule.
	f.clock.Advance(30 * time.Minute)
	if _, err := f.engine.Reschedule(ctx, RescheduleParams{ReservationID: b.Reservation.ID, ActorID: 100, Window: win(17, 0, 18, 0)}); err != nil {
		t.Fatalf("Reschedule after assignment: %v", err)
	}
}

func TestHistoryUnknownReservation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.History(context.Background(), 7); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}
