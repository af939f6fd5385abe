// Package storage adapts the MySQL repositories to the engine's Store
// contract.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/service"
)

// MySQL implements service.Store on top of a *sql.DB.  Reads outside InTx
// run on the pool; InTx hands the callback a view bound to one transaction.
type MySQL struct {
	db     *sql.DB
	logger *zap.Logger
	queries
}

type repos struct {
	rooms        *repository.RoomRepo
	reservations *repository.ReservationRepo
	schedules    *repository.ScheduleRepo
	participants *repository.ParticipantRepo
	violations   *repository.ViolationRepo
}

var _ service.Store = (*MySQL)(nil)

// NewMySQL builds the store.  loc is the location schedule dates and times
// are expressed in.
func NewMySQL(db *sql.DB, loc *time.Location, logger *zap.Logger) *MySQL {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &repos{
		rooms:        repository.NewRoomRepo(db),
		reservations: repository.NewReservationRepo(db, loc),
		schedules:    repository.NewScheduleRepo(db, loc),
		participants: repository.NewParticipantRepo(db),
		violations:   repository.NewViolationRepo(db),
	}
	return &MySQL{db: db, logger: logger, queries: queries{repos: r}}
}

// InTx runs fn inside a READ COMMITTED transaction.  The transaction is
// rolled back when fn returns an error or panics.
func (s *MySQL) InTx(ctx context.Context, fn func(ctx context.Context, q service.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()
	if err := fn(ctx, queries{repos: s.repos, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// queries forwards every Queries method to the repositories, joining tx
// when it is set.
type queries struct {
	*repos
	tx *sql.Tx
}

func (q queries) GetRoom(ctx context.Context, roomID uint64) (model.Room, error) {
	return q.rooms.GetByIDTx(ctx, q.tx, roomID)
}

func (q queries) LockRoom(ctx context.Context, roomID uint64) (model.Room, error) {
	return q.rooms.LockTx(ctx, q.tx, roomID)
}

func (q queries) ListActiveSchedules(ctx context.Context, roomID uint64, date time.Time) ([]model.Schedule, error) {
	return q.schedules.ListActiveWindowsTx(ctx, q.tx, roomID, date)
}

func (q queries) ReservationCodeExists(ctx context.Context, code string) (bool, error) {
	return q.reservations.CodeExistsTx(ctx, q.tx, code)
}

func (q queries) CreateReservation(ctx context.Context, res *model.Reservation) error {
	return q.reservations.CreateTx(ctx, q.tx, res)
}

func (q queries) GetReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	return q.reservations.GetByIDTx(ctx, q.tx, id)
}

func (q queries) LockReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	return q.reservations.LockTx(ctx, q.tx, id)
}

func (q queries) UpdateDuration(ctx context.Context, reservationID uint64, minutes int, at time.Time) error {
	return q.reservations.UpdateDurationTx(ctx, q.tx, reservationID, minutes, at)
}

func (q queries) TransitionStatus(ctx context.Context, id uint64, from, to model.ReservationStatus, at time.Time) (bool, error) {
	return q.reservations.TransitionStatusTx(ctx, q.tx, id, from, to, at)
}

func (q queries) CreateSchedule(ctx context.Context, s *model.Schedule) error {
	return q.schedules.CreateTx(ctx, q.tx, s)
}

func (q queries) GetActiveSchedule(ctx context.Context, reservationID uint64) (model.Schedule, error) {
	return q.schedules.GetActiveTx(ctx, q.tx, reservationID)
}

func (q queries) ListSchedules(ctx context.Context, reservationID uint64) ([]model.Schedule, error) {
	return q.schedules.ListByReservationTx(ctx, q.tx, reservationID)
}

func (q queries) SupersedeSchedule(ctx context.Context, scheduleID uint64) error {
	return q.schedules.SupersedeTx(ctx, q.tx, scheduleID)
}

func (q queries) CreateParticipants(ctx context.Context, ps []model.Participant) error {
	return q.participants.CreateBulkTx(ctx, q.tx, ps)
}

func (q queries) ListParticipants(ctx context.Context, reservationID uint64) ([]model.Participant, error) {
	return q.participants.ListByReservationTx(ctx, q.tx, reservationID)
}

func (q queries) MarkCheckedIn(ctx context.Context, reservationID, personID uint64, at time.Time) (bool, error) {
	return q.participants.MarkCheckedInTx(ctx, q.tx, reservationID, personID, at)
}

func (q queries) LockPersons(ctx context.Context, personIDs []uint64) error {
	return q.participants.LockPersonsTx(ctx, q.tx, personIDs)
}

func (q queries) FindActiveMembership(ctx context.Context, personIDs []uint64) (uint64, uint64, bool, error) {
	return q.participants.FindActiveMembershipTx(ctx, q.tx, personIDs)
}

func (q queries) CompleteDue(ctx context.Context, now time.Time) (int64, error) {
	return q.reservations.CompleteDueTx(ctx, q.tx, now)
}

func (q queries) ListForfeitCandidates(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	return q.reservations.ListForfeitCandidatesTx(ctx, q.tx, cutoff)
}

func (q queries) ClaimForfeit(ctx context.Context, reservationID uint64, cutoff, at time.Time) (bool, error) {
	return q.reservations.ClaimForfeitTx(ctx, q.tx, reservationID, cutoff, at)
}

func (q queries) CountViolationsSince(ctx context.Context, personID uint64, category model.ViolationCategory, since time.Time) (int, error) {
	return q.violations.CountSinceTx(ctx, q.tx, personID, category, since)
}

func (q queries) CreateViolation(ctx context.Context, v *model.Violation) error {
	return q.violations.CreateTx(ctx, q.tx, v)
}

func (q queries) ListCoveringViolations(ctx context.Context, personID uint64, at time.Time) ([]model.Violation, error) {
	return q.violations.ListCoveringTx(ctx, q.tx, personID, at)
}
