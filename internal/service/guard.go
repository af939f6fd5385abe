package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/room-reservation/internal/model"
)

// Restriction describes a block or suspension that currently applies to a
// person.
type Restriction struct {
	PersonID        uint64
	Penalty         model.Penalty
	Severity        int
	Reason          string
	ReservationCode string
	Until           time.Time
}

// ActiveRestriction returns the most severe violation covering now for the
// person, or nil when the person may book.  Among equally severe records the
// one expiring last wins.
func (e *Engine) ActiveRestriction(ctx context.Context, personID uint64) (*Restriction, error) {
	return e.restrictionAt(ctx, e.store, personID, e.clock())
}

func (e *Engine) restrictionAt(ctx context.Context, q Queries, personID uint64, at time.Time) (*Restriction, error) {
	records, err := q.ListCoveringViolations(ctx, personID, at)
	if err != nil {
		return nil, err
	}
	var best *model.Violation
	for i := range records {
		v := &records[i]
		if !v.Covers(at) {
			continue
		}
		if best == nil || v.Severity > best.Severity ||
			(v.Severity == best.Severity && v.WindowEnd.After(best.WindowEnd)) {
			best = v
		}
	}
	if best == nil {
		return nil, nil
	}
	e.logger.Debug("active restriction found",
		zap.Uint64("person_id", personID),
		zap.String("penalty", string(best.Penalty)),
		zap.Time("until", best.WindowEnd))
	return &Restriction{
		PersonID:        personID,
		Penalty:         best.Penalty,
		Severity:        best.Severity,
		Reason:          best.Reason,
		ReservationCode: best.ReservationCode,
		Until:           best.WindowEnd,
	}, nil
}
