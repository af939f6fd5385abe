package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/room-reservation/internal/model"
)

func TestParticipantCreateBulk(t *testing.T) {
	db, mock := newMock(t)
	repo := NewParticipantRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO participants (reservation_id, person_id, is_leader, checked_in, checked_in_at) VALUES (?, ?, ?, ?, ?),(?, ?, ?, ?, ?)")).
		WithArgs(uint64(7), uint64(100), true, false, sqlmock.AnyArg(), uint64(7), uint64(101), false, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.CreateBulkTx(context.Background(), nil, []model.Participant{
		{ReservationID: 7, PersonID: 100, IsLeader: true},
		{ReservationID: 7, PersonID: 101},
	})
	if err != nil {
		t.Fatalf("CreateBulkTx: %v", err)
	}

	// An empty roster issues no statement.
	if err := repo.CreateBulkTx(context.Background(), nil, nil); err != nil {
		t.Fatalf("empty CreateBulkTx: %v", err)
	}
}

func TestParticipantListAndCheckIn(t *testing.T) {
	db, mock := newMock(t)
	repo := NewParticipantRepo(db)
	arrived := time.Date(2025, 6, 2, 2, 5, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY is_leader DESC, person_id")).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"reservation_id", "person_id", "is_leader", "checked_in", "checked_in_at"}).
			AddRow(uint64(7), uint64(100), true, false, nil).
			AddRow(uint64(7), uint64(101), false, true, arrived))
	mock.ExpectExec(regexp.QuoteMeta("AND checked_in = 0")).
		WithArgs(arrived, uint64(7), uint64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("AND checked_in = 0")).
		WithArgs(arrived, uint64(7), uint64(100)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ps, err := repo.ListByReservationTx(context.Background(), nil, 7)
	if err != nil {
		t.Fatalf("ListByReservationTx: %v", err)
	}
	if len(ps) != 2 || !ps[0].IsLeader || ps[0].CheckedInAt != nil || ps[1].CheckedInAt == nil {
		t.Fatalf("roster = %+v", ps)
	}

	if ok, err := repo.MarkCheckedInTx(context.Background(), nil, 7, 100, arrived); err != nil || !ok {
		t.Fatalf("first check-in = %v, %v", ok, err)
	}
	if ok, err := repo.MarkCheckedInTx(context.Background(), nil, 7, 100, arrived); err != nil || ok {
		t.Fatalf("second check-in = %v, %v", ok, err)
	}
}

func TestFindActiveMembership(t *testing.T) {
	db, mock := newMock(t)
	repo := NewParticipantRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("p.person_id IN (?,?,?)")).
		WithArgs(uint64(1), uint64(2), uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"person_id", "reservation_id"}).AddRow(uint64(2), uint64(44)))
	mock.ExpectQuery(regexp.QuoteMeta("p.person_id IN (?)")).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"person_id", "reservation_id"}))

	person, res, found, err := repo.FindActiveMembershipTx(context.Background(), nil, []uint64{1, 2, 3})
	if err != nil || !found || person != 2 || res != 44 {
		t.Fatalf("membership = %d/%d/%v/%v", person, res, found, err)
	}
	if _, _, found, err := repo.FindActiveMembershipTx(context.Background(), nil, []uint64{9}); err != nil || found {
		t.Fatalf("expected no membership, got found=%v err=%v", found, err)
	}
	if _, _, found, err := repo.FindActiveMembershipTx(context.Background(), nil, nil); err != nil || found {
		t.Fatalf("empty lookup = %v, %v", found, err)
	}
}

func TestLockPersonsInAscendingOrder(t *testing.T) {
	db, mock := newMock(t)
	repo := NewParticipantRepo(db)
	ctx := context.Background()

	if err := repo.LockPersonsTx(ctx, nil, []uint64{1}); err != ErrNoTransaction {
		t.Fatalf("expected ErrNoTransaction, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO person_locks (person_id) VALUES (?),(?),(?) ON DUPLICATE KEY UPDATE person_id = person_id")).
		WithArgs(uint64(3), uint64(40), uint64(102)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := repo.LockPersonsTx(ctx, tx, []uint64{102, 3, 40, 3, 0}); err != nil {
		t.Fatalf("LockPersonsTx: %v", err)
	}
	// Nothing left to lock issues no statement.
	if err := repo.LockPersonsTx(ctx, tx, []uint64{0}); err != nil {
		t.Fatalf("empty LockPersonsTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}
