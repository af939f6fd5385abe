package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/room-reservation/internal/model"
)

// RoomRepo reads the room directory.  Rooms are maintained elsewhere; the
// booking engine only reads them and locks them to serialise writers.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

const roomColumns = `id, name, min_capacity, max_capacity, is_available, accepts_general, accepts_institutional`

// GetByIDTx returns a room by id.
func (r *RoomRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Room, error) {
	return scanRoom(conn(r.db, tx).QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
}

// LockTx reads a room with SELECT ... FOR UPDATE.  Every writer that
// touches the room's schedule takes this lock first, so conflict checks and
// inserts on one room never interleave.
func (r *RoomRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Room, error) {
	return scanRoom(conn(r.db, tx).QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ? FOR UPDATE`, id))
}

func scanRoom(row *sql.Row) (model.Room, error) {
	var rm model.Room
	err := row.Scan(&rm.ID, &rm.Name, &rm.MinCapacity, &rm.MaxCapacity,
		&rm.IsAvailable, &rm.AcceptsGeneral, &rm.AcceptsInstitutional)
	if err != nil {
		return model.Room{}, translate(err)
	}
	return rm, nil
}
