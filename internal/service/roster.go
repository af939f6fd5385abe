package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/room-reservation/internal/model"
)

// AddMembers appends non-leader participants to the roster of an ACTIVE
// general reservation owned by actorID.  People already on the roster are
// ignored; the returned slice is the whole roster, leader first.  The
// grown roster must still fit the room and every new member must be free
// of other ACTIVE reservations.
func (e *Engine) AddMembers(ctx context.Context, reservationID, actorID uint64, personIDs []uint64) ([]model.Participant, error) {
	log := e.opLogger("add_members", zap.Uint64("reservation_id", reservationID), zap.Uint64("actor_id", actorID))

	var (
		roster []model.Participant
		added  int
	)
	err := e.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		res, err := lockOwnedReservation(ctx, q, reservationID, actorID)
		if err != nil {
			return err
		}
		if res.IsInstitutional() {
			return ErrInvalidRoster
		}
		room, err := q.LockRoom(ctx, res.RoomID)
		if err != nil {
			return err
		}
		current, err := q.ListParticipants(ctx, res.ID)
		if err != nil {
			return err
		}

		onRoster := make(map[uint64]struct{}, len(current))
		for _, p := range current {
			onRoster[p.PersonID] = struct{}{}
		}
		var newIDs []uint64
		for _, id := range personIDs {
			if id == 0 {
				continue
			}
			if _, ok := onRoster[id]; ok {
				continue
			}
			onRoster[id] = struct{}{}
			newIDs = append(newIDs, id)
		}
		roster = current
		if len(newIDs) == 0 {
			return nil
		}

		if !room.FitsRoster(len(current) + len(newIDs)) {
			return ErrCapacityOutOfRange
		}
		if err := checkMembership(ctx, q, newIDs); err != nil {
			return err
		}
		ps := make([]model.Participant, 0, len(newIDs))
		for _, id := range newIDs {
			ps = append(ps, model.Participant{ReservationID: res.ID, PersonID: id})
		}
		if err := q.CreateParticipants(ctx, ps); err != nil {
			return mapWriteError(err)
		}
		roster = append(append([]model.Participant(nil), current...), ps...)
		added = len(ps)
		return nil
	})
	if err != nil {
		logOutcome(log, err, "add members")
		return nil, err
	}
	logOutcome(log, nil, "members added", zap.Int("added", added), zap.Int("roster_size", len(roster)))
	return roster, nil
}
