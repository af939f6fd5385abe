package model

import (
	"fmt"
	"time"
)

// ViolationCategory classifies what the person did wrong.
type ViolationCategory string

// CategoryNoShow is recorded when a reservation is forfeited because nobody
// in the roster checked in.
const CategoryNoShow ViolationCategory = "NO_SHOW"

// Penalty is the kind of restriction a violation imposes.
type Penalty string

const (
	PenaltyBlock      Penalty = "BLOCK"
	PenaltySuspension Penalty = "SUSPENSION"
)

// ParsePenalty converts a stored column value into a Penalty.
func ParsePenalty(s string) (Penalty, error) {
	switch Penalty(s) {
	case PenaltyBlock, PenaltySuspension:
		return Penalty(s), nil
	}
	return "", fmt.Errorf("unknown penalty %q", s)
}

// Violation is an immutable escalation record.  Overlapping windows are
// allowed; penalties are additive and never merged.
//
// Fields:
//  ID              – primary key identifier.
//  PersonID        – penalised person.
//  Category        – violation category (NO_SHOW).
//  Penalty         – BLOCK or SUSPENSION.
//  Severity        – 1..3, used to rank covering records.
//  Reason          – human readable explanation.
//  ReservationCode – code of the reservation that triggered the record.
//  WindowStart     – when the restriction begins.
//  WindowEnd       – when the restriction expires (always after WindowStart).
//  CreatedAt       – creation timestamp.
type Violation struct {
	ID              uint64            // violations.id
	PersonID        uint64            // violations.person_id
	Category        ViolationCategory // violations.category
	Penalty         Penalty           // violations.penalty
	Severity        int               // violations.severity
	Reason          string            // violations.reason
	ReservationCode string            // violations.reservation_code
	WindowStart     time.Time         // violations.window_start
	WindowEnd       time.Time         // violations.window_end
	CreatedAt       time.Time         // violations.created_at
}

// Covers reports whether the restriction window contains t.
func (v Violation) Covers(t time.Time) bool {
	return !t.Before(v.WindowStart) && t.Before(v.WindowEnd)
}
