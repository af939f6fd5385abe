package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/room-reservation/internal/model"
)

// DecidePenalty maps the violation number n (prior violations in the
// lookback window plus the one being recorded) to a penalty.
func DecidePenalty(n int, p Policy) (model.Penalty, int, time.Duration) {
	threshold := p.SuspensionThreshold
	if threshold <= 0 {
		threshold = DefaultPolicy().SuspensionThreshold
	}
	if n >= threshold {
		return model.PenaltySuspension, threshold, p.SuspensionDuration
	}
	if n < 1 {
		n = 1
	}
	return model.PenaltyBlock, n, p.BlockDuration
}

func penaltyReason(penalty model.Penalty, n int, code string, d time.Duration) string {
	if penalty == model.PenaltySuspension {
		return fmt.Sprintf("suspended for %s after no-show #%d (reservation %s)", d, n, code)
	}
	return fmt.Sprintf("blocked for %s after no-show #%d (reservation %s)", d, n, code)
}

// escalate records one no-show for personID inside the forfeiting
// transaction and returns the notice to send once it commits.
func (e *Engine) escalate(ctx context.Context, q Queries, personID uint64, code string, now time.Time) (Notice, error) {
	since := now.Add(-e.policy.ViolationLookback)
	prior, err := q.CountViolationsSince(ctx, personID, model.CategoryNoShow, since)
	if err != nil {
		return Notice{}, err
	}
	n := prior + 1
	penalty, severity, d := DecidePenalty(n, e.policy)

	v := model.Violation{
		PersonID:        personID,
		Category:        model.CategoryNoShow,
		Penalty:         penalty,
		Severity:        severity,
		Reason:          penaltyReason(penalty, n, code, d),
		ReservationCode: code,
		WindowStart:     now,
		WindowEnd:       now.Add(d),
		CreatedAt:       now,
	}
	if err := q.CreateViolation(ctx, &v); err != nil {
		return Notice{}, err
	}
	e.logger.Info("violation recorded",
		zap.Uint64("person_id", personID),
		zap.String("reservation_code", code),
		zap.String("penalty", string(penalty)),
		zap.Int("violation_number", n),
		zap.Time("until", v.WindowEnd))
	return Notice{
		PersonID:        personID,
		Severity:        severity,
		Penalty:         penalty,
		ReservationCode: code,
		WindowEnd:       v.WindowEnd,
		Reason:          v.Reason,
	}, nil
}
