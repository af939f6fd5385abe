package model

import "time"

// Participant is a person's membership in a reservation roster.
//
// Fields:
//  ReservationID – reservation the person belongs to.
//  PersonID      – person identifier supplied by the identity provider.
//  IsLeader      – exactly one participant per roster is the leader.
//  CheckedIn     – whether the person confirmed arrival.
//  CheckedInAt   – arrival timestamp (nil until checked in).
type Participant struct {
	ReservationID uint64     // participants.reservation_id
	PersonID      uint64     // participants.person_id
	IsLeader      bool       // participants.is_leader
	CheckedIn     bool       // participants.checked_in
	CheckedInAt   *time.Time // participants.checked_in_at (nullable)
}
