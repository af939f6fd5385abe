package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
)

// CreateReservationParams is the input of CreateReservation.  Window may be
// nil only for institutional reservations.  MemberIDs excludes the leader;
// duplicates and the leader's own id are ignored.
type CreateReservationParams struct {
	RoomID          uint64
	Window          *model.Window
	LeaderID        uint64
	MemberIDs       []uint64
	InstitutionName string
	AttachmentRef   string
}

// Booking is a reservation together with its current window and roster.
type Booking struct {
	Reservation  model.Reservation
	Schedule     *model.Schedule
	Participants []model.Participant
}

// CreateReservation validates and atomically creates a reservation, its
// initial schedule (when a window is given) and its roster.
func (e *Engine) CreateReservation(ctx context.Context, p CreateReservationParams) (*Booking, error) {
	log := e.opLogger("create_reservation", zap.Uint64("room_id", p.RoomID), zap.Uint64("leader_id", p.LeaderID))
	b, err := e.createReservation(ctx, p)
	if err != nil {
		logOutcome(log, err, "reservation create")
		return nil, err
	}
	logOutcome(log, nil, "reservation created",
		zap.Uint64("reservation_id", b.Reservation.ID),
		zap.String("code", b.Reservation.Code))
	return b, nil
}

func (e *Engine) createReservation(ctx context.Context, p CreateReservationParams) (*Booking, error) {
	now := e.clock()
	institution := strings.TrimSpace(p.InstitutionName)
	institutional := institution != ""

	if p.LeaderID == 0 {
		return nil, ErrInvalidRoster
	}
	var window *model.Window
	if p.Window != nil {
		w := e.anchor(*p.Window)
		if err := validateWindow(w, now); err != nil {
			return nil, err
		}
		window = &w
	} else if !institutional {
		return nil, ErrInvalidWindow
	}

	var roster []uint64
	if !institutional {
		roster = buildRoster(p.LeaderID, p.MemberIDs)
	} else if len(buildRoster(p.LeaderID, p.MemberIDs)) > 1 {
		return nil, ErrInvalidRoster
	}

	restriction, err := e.restrictionAt(ctx, e.store, p.LeaderID, now)
	if err != nil {
		return nil, err
	}
	if restriction != nil {
		return nil, &RestrictionError{Restriction: *restriction}
	}

	var booking *Booking
	err = e.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		room, err := q.LockRoom(ctx, p.RoomID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRoomNotFound
			}
			return err
		}
		if !room.Accepts(institutional) {
			return ErrResourceUnavailable
		}
		if !institutional && !room.FitsRoster(len(roster)) {
			return ErrCapacityOutOfRange
		}
		if err := checkMembership(ctx, q, roster); err != nil {
			return err
		}
		if window != nil {
			if err := checkConflict(ctx, q, room.ID, *window, 0); err != nil {
				return err
			}
		}

		res := model.Reservation{
			RoomID:    room.ID,
			BookedBy:  p.LeaderID,
			Status:    model.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if institutional {
			res.InstitutionName = &institution
		}
		if ref := strings.TrimSpace(p.AttachmentRef); ref != "" {
			res.AttachmentRef = &ref
		}
		if window != nil {
			res.DurationMinutes = window.Minutes()
		}
		if err := e.insertWithCode(ctx, q, &res, now); err != nil {
			return err
		}

		booking = &Booking{Reservation: res}
		if window != nil {
			s := model.Schedule{
				ReservationID: res.ID,
				Window:        *window,
				VersionStatus: model.VersionActive,
				CreatedAt:     now,
			}
			if err := q.CreateSchedule(ctx, &s); err != nil {
				return mapWriteError(err)
			}
			booking.Schedule = &s
		}
		if len(roster) > 0 {
			ps := make([]model.Participant, 0, len(roster))
			for i, id := range roster {
				ps = append(ps, model.Participant{ReservationID: res.ID, PersonID: id, IsLeader: i == 0})
			}
			if err := q.CreateParticipants(ctx, ps); err != nil {
				return mapWriteError(err)
			}
			booking.Participants = ps
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// insertWithCode allocates a code that is free at insert time, retrying on
// collisions a bounded number of times.
func (e *Engine) insertWithCode(ctx context.Context, q Queries, res *model.Reservation, now time.Time) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := e.newCode(now)
		taken, err := q.ReservationCodeExists(ctx, code)
		if err != nil {
			return err
		}
		if taken {
			continue
		}
		res.Code = code
		err = q.CreateReservation(ctx, res)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		return err
	}
	return ErrCodeExhausted
}

// buildRoster returns the leader followed by the distinct non-zero members.
func buildRoster(leader uint64, members []uint64) []uint64 {
	roster := []uint64{leader}
	seen := map[uint64]struct{}{leader: {}}
	for _, id := range members {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		roster = append(roster, id)
	}
	return roster
}

// checkMembership locks the people about to join a roster and rejects the
// write when any of them already belongs to an ACTIVE reservation.
func checkMembership(ctx context.Context, q Queries, personIDs []uint64) error {
	if len(personIDs) == 0 {
		return nil
	}
	if err := q.LockPersons(ctx, personIDs); err != nil {
		return err
	}
	personID, resID, found, err := q.FindActiveMembership(ctx, personIDs)
	if err != nil {
		return err
	}
	if found {
		return &ActiveElsewhereError{PersonID: personID, ReservationID: resID}
	}
	return nil
}

func mapWriteError(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrIntegrity
	}
	return err
}
