package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
)

// ScheduleRepo manages the append-only schedules table.  The date column is
// a DATE and start_time/end_time are TIME values, all wall-clock in loc.
type ScheduleRepo struct {
	db  *sql.DB
	loc *time.Location
}

// NewScheduleRepo returns a ScheduleRepo.  A nil loc means UTC.
func NewScheduleRepo(db *sql.DB, loc *time.Location) *ScheduleRepo {
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleRepo{db: db, loc: loc}
}

const scheduleColumns = `s.id, s.reservation_id, s.date, s.start_time, s.end_time, s.version_status, s.reschedule_reason, s.created_at`

// CreateTx inserts a schedule row and populates its ID.
func (r *ScheduleRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Schedule) error {
	const q = `INSERT INTO schedules (reservation_id, date, start_time, end_time, version_status, reschedule_reason, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := conn(r.db, tx).ExecContext(ctx, q,
		s.ReservationID, s.Window.Date.In(r.loc).Format("2006-01-02"),
		s.Window.Start.String(), s.Window.End.String(),
		string(s.VersionStatus), nullString(s.RescheduleReason), s.CreatedAt.UTC())
	if err != nil {
		return translate(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetActiveTx returns the ACTIVE schedule of a reservation or ErrNotFound.
func (r *ScheduleRepo) GetActiveTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (model.Schedule, error) {
	row := conn(r.db, tx).QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules s WHERE s.reservation_id = ? AND s.version_status = 'ACTIVE'`,
		reservationID)
	s, err := r.scan(row)
	if err != nil {
		return model.Schedule{}, translate(err)
	}
	return s, nil
}

// ListByReservationTx returns every version of a reservation's window,
// oldest first.
func (r *ScheduleRepo) ListByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]model.Schedule, error) {
	rows, err := conn(r.db, tx).QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules s WHERE s.reservation_id = ? ORDER BY s.id`,
		reservationID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// ListActiveWindowsTx returns the ACTIVE schedule rows of ACTIVE
// reservations on one room and date.  Callers hold the room lock.
func (r *ScheduleRepo) ListActiveWindowsTx(ctx context.Context, tx *sql.Tx, roomID uint64, date time.Time) ([]model.Schedule, error) {
	const q = `SELECT ` + scheduleColumns + `
               FROM schedules s
               JOIN reservations r ON r.id = s.reservation_id
               WHERE r.room_id = ? AND r.status = 'ACTIVE'
                 AND s.version_status = 'ACTIVE' AND s.date = ?
               ORDER BY s.start_time`
	rows, err := conn(r.db, tx).QueryContext(ctx, q, roomID, date.In(r.loc).Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// SupersedeTx marks an ACTIVE row SUPERSEDED.  ErrConflict means the row
// was already superseded.
func (r *ScheduleRepo) SupersedeTx(ctx context.Context, tx *sql.Tx, scheduleID uint64) error {
	result, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE schedules SET version_status = 'SUPERSEDED' WHERE id = ? AND version_status = 'ACTIVE'`,
		scheduleID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *ScheduleRepo) scan(row scanner) (model.Schedule, error) {
	var (
		s          model.Schedule
		date       time.Time
		start, end string
		version    string
		reason     sql.NullString
	)
	if err := row.Scan(&s.ID, &s.ReservationID, &date, &start, &end, &version, &reason, &s.CreatedAt); err != nil {
		return model.Schedule{}, err
	}
	st, err := model.ParseTimeOfDay(start)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("schedule %d: %w", s.ID, err)
	}
	et, err := model.ParseTimeOfDay(end)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("schedule %d: %w", s.ID, err)
	}
	if s.VersionStatus, err = model.ParseVersionStatus(version); err != nil {
		return model.Schedule{}, err
	}
	y, m, d := date.Date()
	s.Window = model.Window{Date: time.Date(y, m, d, 0, 0, 0, 0, r.loc), Start: st, End: et}
	s.RescheduleReason = stringPtr(reason)
	return s, nil
}

func (r *ScheduleRepo) collect(rows *sql.Rows) ([]model.Schedule, error) {
	defer rows.Close()
	var out []model.Schedule
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
