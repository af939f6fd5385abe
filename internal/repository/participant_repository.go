package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
)

// ParticipantRepo manages reservation rosters and check-ins.
type ParticipantRepo struct {
	db *sql.DB
}

// NewParticipantRepo returns a ParticipantRepo.
func NewParticipantRepo(db *sql.DB) *ParticipantRepo { return &ParticipantRepo{db: db} }

// CreateBulkTx inserts a whole roster in a single statement.  Passing an
// empty slice has no effect.
func (r *ParticipantRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, ps []model.Participant) error {
	if len(ps) == 0 {
		return nil
	}
	query := `INSERT INTO participants (reservation_id, person_id, is_leader, checked_in, checked_in_at) VALUES `
	args := make([]any, 0, len(ps)*5)
	for i, p := range ps {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		var at sql.NullTime
		if p.CheckedInAt != nil {
			at = sql.NullTime{Time: p.CheckedInAt.UTC(), Valid: true}
		}
		args = append(args, p.ReservationID, p.PersonID, p.IsLeader, p.CheckedIn, at)
	}
	_, err := conn(r.db, tx).ExecContext(ctx, query, args...)
	return translate(err)
}

// ListByReservationTx returns the roster, leader first.
func (r *ParticipantRepo) ListByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]model.Participant, error) {
	const q = `SELECT reservation_id, person_id, is_leader, checked_in, checked_in_at
               FROM participants WHERE reservation_id = ?
               ORDER BY is_leader DESC, person_id`
	rows, err := conn(r.db, tx).QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Participant
	for rows.Next() {
		var (
			p  model.Participant
			at sql.NullTime
		)
		if err := rows.Scan(&p.ReservationID, &p.PersonID, &p.IsLeader, &p.CheckedIn, &at); err != nil {
			return nil, err
		}
		if at.Valid {
			t := at.Time
			p.CheckedInAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkCheckedInTx stamps the arrival of a participant who has not checked
// in yet.  It reports false when there was nothing to update.
func (r *ParticipantRepo) MarkCheckedInTx(ctx context.Context, tx *sql.Tx, reservationID, personID uint64, at time.Time) (bool, error) {
	result, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE participants SET checked_in = 1, checked_in_at = ?
         WHERE reservation_id = ? AND person_id = ? AND checked_in = 0`,
		at.UTC(), reservationID, personID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FindActiveMembershipTx returns the first of personIDs that belongs to an
// ACTIVE reservation, together with that reservation.
func (r *ParticipantRepo) FindActiveMembershipTx(ctx context.Context, tx *sql.Tx, personIDs []uint64) (uint64, uint64, bool, error) {
	if len(personIDs) == 0 {
		return 0, 0, false, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(personIDs)), ",")
	q := `SELECT p.person_id, p.reservation_id
          FROM participants p
          JOIN reservations r ON r.id = p.reservation_id
          WHERE r.status = 'ACTIVE' AND p.person_id IN (` + placeholders + `)
          ORDER BY p.reservation_id
          LIMIT 1`
	args := make([]any, len(personIDs))
	for i, id := range personIDs {
		args[i] = id
	}
	var personID, reservationID uint64
	err := conn(r.db, tx).QueryRowContext(ctx, q, args...).Scan(&personID, &reservationID)
	if err == sql.ErrNoRows {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	return personID, reservationID, true, nil
}

// ErrNoTransaction is returned by methods whose locks only make sense inside
// a transaction.
var ErrNoTransaction = errors.New("row lock requested outside a transaction")

// LockPersonsTx takes an exclusive lock on one person_locks row per person,
// creating rows on first use.  Ids are locked in ascending order so two
// roster writers sharing people cannot deadlock on each other.  The locks
// are held until tx ends.
func (r *ParticipantRepo) LockPersonsTx(ctx context.Context, tx *sql.Tx, personIDs []uint64) error {
	if tx == nil {
		return ErrNoTransaction
	}
	ids := uniqueSorted(personIDs)
	if len(ids) == 0 {
		return nil
	}
	q := `INSERT INTO person_locks (person_id) VALUES ` +
		strings.TrimSuffix(strings.Repeat("(?),", len(ids)), ",") +
		` ON DUPLICATE KEY UPDATE person_id = person_id`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

func uniqueSorted(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
