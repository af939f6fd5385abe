package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
)

// ViolationRepo stores escalation records.  Rows are insert-only and all
// instants are stored in UTC.
type ViolationRepo struct {
	db *sql.DB
}

// NewViolationRepo returns a ViolationRepo.
func NewViolationRepo(db *sql.DB) *ViolationRepo { return &ViolationRepo{db: db} }

// CreateTx inserts a violation record and populates its ID.
func (r *ViolationRepo) CreateTx(ctx context.Context, tx *sql.Tx, v *model.Violation) error {
	const q = `INSERT INTO violations (person_id, category, penalty, severity, reason, reservation_code, window_start, window_end, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := conn(r.db, tx).ExecContext(ctx, q,
		v.PersonID, string(v.Category), string(v.Penalty), v.Severity, v.Reason, v.ReservationCode,
		v.WindowStart.UTC(), v.WindowEnd.UTC(), v.CreatedAt.UTC())
	if err != nil {
		return translate(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// CountSinceTx counts the person's violations of a category whose window
// started at or after since.
func (r *ViolationRepo) CountSinceTx(ctx context.Context, tx *sql.Tx, personID uint64, category model.ViolationCategory, since time.Time) (int, error) {
	var n int
	err := conn(r.db, tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM violations WHERE person_id = ? AND category = ? AND window_start >= ?`,
		personID, string(category), since.UTC()).Scan(&n)
	return n, err
}

// ListCoveringTx returns the person's violations whose window contains at,
// most severe first.
func (r *ViolationRepo) ListCoveringTx(ctx context.Context, tx *sql.Tx, personID uint64, at time.Time) ([]model.Violation, error) {
	const q = `SELECT id, person_id, category, penalty, severity, reason, reservation_code, window_start, window_end, created_at
               FROM violations
               WHERE person_id = ? AND window_start <= ? AND window_end > ?
               ORDER BY severity DESC, window_end DESC`
	rows, err := conn(r.db, tx).QueryContext(ctx, q, personID, at.UTC(), at.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Violation
	for rows.Next() {
		var (
			v        model.Violation
			category string
			penalty  string
		)
		if err := rows.Scan(&v.ID, &v.PersonID, &category, &penalty, &v.Severity, &v.Reason,
			&v.ReservationCode, &v.WindowStart, &v.WindowEnd, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Category = model.ViolationCategory(category)
		if v.Penalty, err = model.ParsePenalty(penalty); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
