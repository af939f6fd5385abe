package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
)

// memState is the whole database of the in-memory store.
type memState struct {
	rooms        map[uint64]model.Room
	reservations map[uint64]model.Reservation
	schedules    []model.Schedule
	participants []model.Participant
	violations   []model.Violation
	nextRes      uint64
	nextSched    uint64
	nextViol     uint64
}

func newMemState() *memState {
	return &memState{
		rooms:        map[uint64]model.Room{},
		reservations: map[uint64]model.Reservation{},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		rooms:        make(map[uint64]model.Room, len(s.rooms)),
		reservations: make(map[uint64]model.Reservation, len(s.reservations)),
		schedules:    append([]model.Schedule(nil), s.schedules...),
		participants: append([]model.Participant(nil), s.participants...),
		violations:   append([]model.Violation(nil), s.violations...),
		nextRes:      s.nextRes,
		nextSched:    s.nextSched,
		nextViol:     s.nextViol,
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	return c
}

// memStore is a Store whose transactions are fully serialised and rolled
// back by restoring a snapshot.
type memStore struct {
	memQueries
	mu sync.Mutex
	st *memState

	// fault injection
	failCreateParticipants error
	failCreateViolation    error
	takenCodes             map[string]bool

	// membership calls in order, for lock-before-check assertions
	calls         []string
	lockedPersons [][]uint64
}

func newMemStore() *memStore {
	s := &memStore{st: newMemState(), takenCodes: map[string]bool{}}
	s.memQueries = memQueries{s: s}
	return s
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(ctx, memQueries{s: s, inTx: true}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *memStore) addRoom(r model.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.rooms[r.ID] = r
}

func (s *memStore) snapshot() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.clone()
}

type memQueries struct {
	s    *memStore
	inTx bool
}

func (q memQueries) lock() func() {
	if q.inTx {
		return func() {}
	}
	q.s.mu.Lock()
	return q.s.mu.Unlock
}

func (q memQueries) GetRoom(_ context.Context, roomID uint64) (model.Room, error) {
	defer q.lock()()
	r, ok := q.s.st.rooms[roomID]
	if !ok {
		return model.Room{}, repository.ErrNotFound
	}
	return r, nil
}

func (q memQueries) LockRoom(ctx context.Context, roomID uint64) (model.Room, error) {
	return q.GetRoom(ctx, roomID)
}

func (q memQueries) ListActiveSchedules(_ context.Context, roomID uint64, date time.Time) ([]model.Schedule, error) {
	defer q.lock()()
	var out []model.Schedule
	probe := model.Window{Date: date}
	for _, sc := range q.s.st.schedules {
		res := q.s.st.reservations[sc.ReservationID]
		if res.RoomID != roomID || res.Status != model.StatusActive || sc.VersionStatus != model.VersionActive {
			continue
		}
		if sc.Window.SameDate(probe) {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (q memQueries) ReservationCodeExists(_ context.Context, code string) (bool, error) {
	defer q.lock()()
	if q.s.takenCodes[code] {
		return true, nil
	}
	for _, r := range q.s.st.reservations {
		if r.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (q memQueries) CreateReservation(_ context.Context, res *model.Reservation) error {
	defer q.lock()()
	for _, r := range q.s.st.reservations {
		if r.Code == res.Code {
			return repository.ErrDuplicate
		}
	}
	q.s.st.nextRes++
	res.ID = q.s.st.nextRes
	q.s.st.reservations[res.ID] = *res
	return nil
}

func (q memQueries) GetReservation(_ context.Context, id uint64) (model.Reservation, error) {
	defer q.lock()()
	r, ok := q.s.st.reservations[id]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	return r, nil
}

func (q memQueries) LockReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	return q.GetReservation(ctx, id)
}

func (q memQueries) UpdateDuration(_ context.Context, id uint64, minutes int, at time.Time) error {
	defer q.lock()()
	r, ok := q.s.st.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.DurationMinutes = minutes
	r.UpdatedAt = at
	q.s.st.reservations[id] = r
	return nil
}

func (q memQueries) TransitionStatus(_ context.Context, id uint64, from, to model.ReservationStatus, at time.Time) (bool, error) {
	defer q.lock()()
	r, ok := q.s.st.reservations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	if !from.CanTransitionTo(to) {
		return false, errors.New("illegal transition")
	}
	r.Status = to
	r.UpdatedAt = at
	q.s.st.reservations[id] = r
	return true, nil
}

func (q memQueries) CreateSchedule(_ context.Context, sc *model.Schedule) error {
	defer q.lock()()
	if sc.VersionStatus == model.VersionActive {
		for _, existing := range q.s.st.schedules {
			if existing.ReservationID == sc.ReservationID && existing.VersionStatus == model.VersionActive {
				return repository.ErrDuplicate
			}
		}
	}
	q.s.st.nextSched++
	sc.ID = q.s.st.nextSched
	q.s.st.schedules = append(q.s.st.schedules, *sc)
	return nil
}

func (q memQueries) GetActiveSchedule(_ context.Context, reservationID uint64) (model.Schedule, error) {
	defer q.lock()()
	for _, sc := range q.s.st.schedules {
		if sc.ReservationID == reservationID && sc.VersionStatus == model.VersionActive {
			return sc, nil
		}
	}
	return model.Schedule{}, repository.ErrNotFound
}

func (q memQueries) ListSchedules(_ context.Context, reservationID uint64) ([]model.Schedule, error) {
	defer q.lock()()
	var out []model.Schedule
	for _, sc := range q.s.st.schedules {
		if sc.ReservationID == reservationID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (q memQueries) SupersedeSchedule(_ context.Context, scheduleID uint64) error {
	defer q.lock()()
	for i, sc := range q.s.st.schedules {
		if sc.ID == scheduleID {
			if sc.VersionStatus != model.VersionActive {
				return repository.ErrConflict
			}
			q.s.st.schedules[i].VersionStatus = model.VersionSuperseded
			return nil
		}
	}
	return repository.ErrNotFound
}

func (q memQueries) CreateParticipants(_ context.Context, ps []model.Participant) error {
	defer q.lock()()
	if q.s.failCreateParticipants != nil {
		return q.s.failCreateParticipants
	}
	q.s.st.participants = append(q.s.st.participants, ps...)
	return nil
}

func (q memQueries) ListParticipants(_ context.Context, reservationID uint64) ([]model.Participant, error) {
	defer q.lock()()
	var out []model.Participant
	for _, p := range q.s.st.participants {
		if p.ReservationID == reservationID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsLeader && !out[j].IsLeader })
	return out, nil
}

func (q memQueries) MarkCheckedIn(_ context.Context, reservationID, personID uint64, at time.Time) (bool, error) {
	defer q.lock()()
	for i, p := range q.s.st.participants {
		if p.ReservationID == reservationID && p.PersonID == personID && !p.CheckedIn {
			t := at
			q.s.st.participants[i].CheckedIn = true
			q.s.st.participants[i].CheckedInAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (q memQueries) LockPersons(_ context.Context, personIDs []uint64) error {
	defer q.lock()()
	q.s.calls = append(q.s.calls, "lock_persons")
	q.s.lockedPersons = append(q.s.lockedPersons, append([]uint64(nil), personIDs...))
	return nil
}

func (q memQueries) FindActiveMembership(_ context.Context, personIDs []uint64) (uint64, uint64, bool, error) {
	defer q.lock()()
	q.s.calls = append(q.s.calls, "find_active_membership")
	want := map[uint64]bool{}
	for _, id := range personIDs {
		want[id] = true
	}
	for _, p := range q.s.st.participants {
		if want[p.PersonID] && q.s.st.reservations[p.ReservationID].Status == model.StatusActive {
			return p.PersonID, p.ReservationID, true, nil
		}
	}
	return 0, 0, false, nil
}

func (q memQueries) activeSchedule(reservationID uint64) (model.Schedule, bool) {
	for _, sc := range q.s.st.schedules {
		if sc.ReservationID == reservationID && sc.VersionStatus == model.VersionActive {
			return sc, true
		}
	}
	return model.Schedule{}, false
}

func (q memQueries) hasArrival(reservationID uint64) bool {
	for _, p := range q.s.st.participants {
		if p.ReservationID == reservationID && p.CheckedIn {
			return true
		}
	}
	return false
}

func (q memQueries) CompleteDue(_ context.Context, now time.Time) (int64, error) {
	defer q.lock()()
	var n int64
	for id, r := range q.s.st.reservations {
		if r.Status != model.StatusActive {
			continue
		}
		sc, ok := q.activeSchedule(id)
		if !ok || !sc.Window.EndAt().Before(now) {
			continue
		}
		if r.IsInstitutional() || q.hasArrival(id) {
			r.Status = model.StatusCompleted
			r.UpdatedAt = now
			q.s.st.reservations[id] = r
			n++
		}
	}
	return n, nil
}

func (q memQueries) forfeitable(id uint64, cutoff time.Time) bool {
	r := q.s.st.reservations[id]
	if r.Status != model.StatusActive || r.IsInstitutional() {
		return false
	}
	sc, ok := q.activeSchedule(id)
	return ok && sc.Window.StartAt().Before(cutoff) && !q.hasArrival(id)
}

func (q memQueries) ListForfeitCandidates(_ context.Context, cutoff time.Time) ([]uint64, error) {
	defer q.lock()()
	var ids []uint64
	for id := range q.s.st.reservations {
		if q.forfeitable(id, cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (q memQueries) ClaimForfeit(_ context.Context, id uint64, cutoff, at time.Time) (bool, error) {
	defer q.lock()()
	if !q.forfeitable(id, cutoff) {
		return false, nil
	}
	r := q.s.st.reservations[id]
	r.Status = model.StatusForfeited
	r.UpdatedAt = at
	q.s.st.reservations[id] = r
	return true, nil
}

func (q memQueries) CountViolationsSince(_ context.Context, personID uint64, category model.ViolationCategory, since time.Time) (int, error) {
	defer q.lock()()
	n := 0
	for _, v := range q.s.st.violations {
		if v.PersonID == personID && v.Category == category && !v.WindowStart.Before(since) {
			n++
		}
	}
	return n, nil
}

func (q memQueries) CreateViolation(_ context.Context, v *model.Violation) error {
	defer q.lock()()
	if q.s.failCreateViolation != nil {
		return q.s.failCreateViolation
	}
	q.s.st.nextViol++
	v.ID = q.s.st.nextViol
	q.s.st.violations = append(q.s.st.violations, *v)
	return nil
}

func (q memQueries) ListCoveringViolations(_ context.Context, personID uint64, at time.Time) ([]model.Violation, error) {
	defer q.lock()()
	var out []model.Violation
	for _, v := range q.s.st.violations {
		if v.PersonID == personID && v.Covers(at) {
			out = append(out, v)
		}
	}
	return out, nil
}
