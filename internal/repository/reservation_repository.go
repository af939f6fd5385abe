package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
)

// ReservationRepo provides access to the reservations table and the
// status-guarded updates the lifecycle scan relies on.  Audit timestamps
// are stored in UTC.  Schedule dates and times are wall-clock values in loc,
// so comparisons against schedules are made with wall-clock strings in loc.
type ReservationRepo struct {
	db  *sql.DB
	loc *time.Location
}

// NewReservationRepo returns a new ReservationRepo bound to the given
// database.  A nil loc means UTC.
func NewReservationRepo(db *sql.DB, loc *time.Location) *ReservationRepo {
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationRepo{db: db, loc: loc}
}

const reservationColumns = `id, code, room_id, booked_by, duration_minutes, status, institution_name, attachment_ref, created_at, updated_at`

// wallClock is the layout MySQL uses for TIMESTAMP(date, time) values.
const wallClock = "2006-01-02 15:04:05"

// arrivalExists matches reservations with at least one checked in participant.
const arrivalExists = `EXISTS (SELECT 1 FROM participants p WHERE p.reservation_id = r.id AND p.checked_in = 1)`

// CreateTx inserts a reservation and populates its generated ID.  A code
// collision is reported as ErrDuplicate.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (code, room_id, booked_by, duration_minutes, status, institution_name, attachment_ref, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := conn(r.db, tx).ExecContext(ctx, q,
		res.Code, res.RoomID, res.BookedBy, res.DurationMinutes, string(res.Status),
		nullString(res.InstitutionName), nullString(res.AttachmentRef),
		res.CreatedAt.UTC(), res.UpdatedAt.UTC())
	if err != nil {
		return translate(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// CodeExistsTx reports whether a reservation code is already taken.
func (r *ReservationRepo) CodeExistsTx(ctx context.Context, tx *sql.Tx, code string) (bool, error) {
	var n int
	err := conn(r.db, tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE code = ?`, code).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByIDTx returns a reservation by id or ErrNotFound.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	return scanReservation(conn(r.db, tx).QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
}

// LockTx reads a reservation with SELECT ... FOR UPDATE.
func (r *ReservationRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	return scanReservation(conn(r.db, tx).QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
}

// UpdateDurationTx stores the length of the current window.
func (r *ReservationRepo) UpdateDurationTx(ctx context.Context, tx *sql.Tx, id uint64, minutes int, at time.Time) error {
	_, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE reservations SET duration_minutes = ?, updated_at = ? WHERE id = ?`,
		minutes, at.UTC(), id)
	return err
}

// TransitionStatusTx moves a reservation from one status to another.  It
// reports false when the row was not in the from status any more.
func (r *ReservationRepo) TransitionStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.ReservationStatus, at time.Time) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	result, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), at.UTC(), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompleteDueTx completes, in one statement, every ACTIVE reservation whose
// active window ended before now and which is institutional or has at least
// one arrival.  Concurrent callers cannot complete the same row twice.
func (r *ReservationRepo) CompleteDueTx(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	q := `UPDATE reservations r
          JOIN schedules s ON s.reservation_id = r.id AND s.version_status = 'ACTIVE'
          SET r.status = 'COMPLETED', r.updated_at = ?
          WHERE r.status = 'ACTIVE'
            AND TIMESTAMP(s.date, s.end_time) < ?
            AND (r.institution_name IS NOT NULL OR ` + arrivalExists + `)`
	result, err := conn(r.db, tx).ExecContext(ctx, q, now.UTC(), now.In(r.loc).Format(wallClock))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListForfeitCandidatesTx lists member reservations that are still ACTIVE,
// whose active window started before cutoff and that have no arrival.
func (r *ReservationRepo) ListForfeitCandidatesTx(ctx context.Context, tx *sql.Tx, cutoff time.Time) ([]uint64, error) {
	q := `SELECT r.id FROM reservations r
          JOIN schedules s ON s.reservation_id = r.id AND s.version_status = 'ACTIVE'
          WHERE r.status = 'ACTIVE'
            AND r.institution_name IS NULL
            AND TIMESTAMP(s.date, s.start_time) < ?
            AND NOT ` + arrivalExists + `
          ORDER BY r.id`
	rows, err := conn(r.db, tx).QueryContext(ctx, q, cutoff.In(r.loc).Format(wallClock))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimForfeitTx re-checks the forfeiture condition for one reservation and
// moves it to FORFEITED.  Exactly one concurrent caller sees true.
func (r *ReservationRepo) ClaimForfeitTx(ctx context.Context, tx *sql.Tx, id uint64, cutoff, at time.Time) (bool, error) {
	q := `UPDATE reservations r
          JOIN schedules s ON s.reservation_id = r.id AND s.version_status = 'ACTIVE'
          SET r.status = 'FORFEITED', r.updated_at = ?
          WHERE r.id = ?
            AND r.status = 'ACTIVE'
            AND r.institution_name IS NULL
            AND TIMESTAMP(s.date, s.start_time) < ?
            AND NOT ` + arrivalExists
	result, err := conn(r.db, tx).ExecContext(ctx, q, at.UTC(), id, cutoff.In(r.loc).Format(wallClock))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanReservation(row *sql.Row) (model.Reservation, error) {
	var (
		res         model.Reservation
		status      string
		institution sql.NullString
		attachment  sql.NullString
	)
	err := row.Scan(&res.ID, &res.Code, &res.RoomID, &res.BookedBy, &res.DurationMinutes,
		&status, &institution, &attachment, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return model.Reservation{}, translate(err)
	}
	if res.Status, err = model.ParseReservationStatus(status); err != nil {
		return model.Reservation{}, err
	}
	res.InstitutionName = stringPtr(institution)
	res.AttachmentRef = stringPtr(attachment)
	return res, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
