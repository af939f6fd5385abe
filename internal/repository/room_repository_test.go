package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRoomLockNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRoomRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "min_capacity", "max_capacity", "is_available", "accepts_general", "accepts_institutional"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE id = ?")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "min_capacity", "max_capacity", "is_available", "accepts_general", "accepts_institutional"}).
			AddRow(uint64(1), "Seminar A", 2, 8, true, true, false))

	if _, err := repo.LockTx(context.Background(), nil, 99); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	room, err := repo.GetByIDTx(context.Background(), nil, 1)
	if err != nil {
		t.Fatalf("GetByIDTx: %v", err)
	}
	if room.Name != "Seminar A" || room.MaxCapacity != 8 || room.AcceptsInstitutional {
		t.Fatalf("room = %+v", room)
	}
}
