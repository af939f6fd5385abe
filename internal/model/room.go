package model

// Room represents a bookable room as published by the room directory.
// The booking engine never writes to this table; it only reads the
// capacity bounds, availability flag and accepted reservation categories.
//
// Fields:
//  ID                   – primary key identifier.
//  Name                 – display name of the room.
//  MinCapacity          – smallest roster (leader included) the room accepts.
//  MaxCapacity          – largest roster (leader included) the room accepts.
//  IsAvailable          – whether the room currently takes new reservations.
//  AcceptsGeneral       – whether member (roster based) reservations are allowed.
//  AcceptsInstitutional – whether institution sponsored reservations are allowed.
type Room struct {
	ID                   uint64 // rooms.id
	Name                 string // rooms.name
	MinCapacity          int    // rooms.min_capacity
	MaxCapacity          int    // rooms.max_capacity
	IsAvailable          bool   // rooms.is_available
	AcceptsGeneral       bool   // rooms.accepts_general
	AcceptsInstitutional bool   // rooms.accepts_institutional
}

// Accepts reports whether the room takes reservations of the given kind.
func (r Room) Accepts(institutional bool) bool {
	if !r.IsAvailable {
		return false
	}
	if institutional {
		return r.AcceptsInstitutional
	}
	return r.AcceptsGeneral
}

// FitsRoster reports whether a roster of size n (leader included) is within
// the room's capacity bounds.
func (r Room) FitsRoster(n int) bool {
	return n >= r.MinCapacity && n <= r.MaxCapacity
}
