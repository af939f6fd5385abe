package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/room-reservation/internal/model"
)

// ScanResult reports the transitions made by one lifecycle scan.  Skipped
// is set when another process held the scan lock.
type ScanResult struct {
	Completed int
	Forfeited int
	Skipped   bool
}

// RunLifecycle advances every ACTIVE reservation whose state changed purely
// through elapsed time.  It is safe to call concurrently and redundantly:
// each transition is a conditional update guarded by the current status, so
// a reservation is completed or forfeited (and escalated) at most once.
func (e *Engine) RunLifecycle(ctx context.Context) (ScanResult, error) {
	log := e.opLogger("lifecycle_scan")

	if e.lock != nil {
		unlock, acquired, err := e.lock.TryLock(ctx)
		switch {
		case err != nil:
			log.Warn("scan lock unavailable, scanning without it", zap.Error(err))
		case !acquired:
			log.Debug("scan already running elsewhere")
			return ScanResult{Skipped: true}, nil
		default:
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					log.Warn("scan lock release failed", zap.Error(err))
				}
			}()
		}
	}

	now := e.clock()
	var result ScanResult

	completed, err := e.store.CompleteDue(ctx, now)
	if err != nil {
		log.Error("completion pass failed", zap.Error(err))
		return result, fmt.Errorf("complete due reservations: %w", err)
	}
	result.Completed = int(completed)

	cutoff := now.Add(-e.policy.GracePeriod)
	candidates, err := e.store.ListForfeitCandidates(ctx, cutoff)
	if err != nil {
		log.Error("forfeit candidate query failed", zap.Error(err))
		return result, fmt.Errorf("list forfeit candidates: %w", err)
	}

	var errs []error
	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		won, notices, err := e.forfeit(ctx, id, cutoff, now)
		if err != nil {
			log.Error("forfeit failed", zap.Uint64("reservation_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("forfeit reservation %d: %w", id, err))
			continue
		}
		if !won {
			continue
		}
		result.Forfeited++
		e.dispatch(ctx, notices)
	}

	if result.Completed > 0 || result.Forfeited > 0 {
		log.Info("lifecycle scan finished",
			zap.Int("completed", result.Completed),
			zap.Int("forfeited", result.Forfeited))
	} else {
		log.Debug("lifecycle scan finished with no transitions")
	}
	return result, errors.Join(errs...)
}

// forfeit claims one reservation and escalates every roster member in the
// same transaction.  It reports false when another scan got there first or
// the reservation no longer qualifies.
func (e *Engine) forfeit(ctx context.Context, reservationID uint64, cutoff, now time.Time) (bool, []Notice, error) {
	var (
		won     bool
		notices []Notice
	)
	err := e.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		claimed, err := q.ClaimForfeit(ctx, reservationID, cutoff, now)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}
		res, err := q.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		participants, err := q.ListParticipants(ctx, reservationID)
		if err != nil {
			return err
		}
		notices = make([]Notice, 0, len(participants))
		for _, p := range participants {
			n, err := e.escalate(ctx, q, p.PersonID, res.Code, now)
			if err != nil {
				return err
			}
			notices = append(notices, n)
		}
		won = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	if won {
		e.logger.Info("reservation forfeited",
			zap.Uint64("reservation_id", reservationID),
			zap.Int("violations", len(notices)))
	}
	return won, notices, nil
}

// Cancel moves an ACTIVE reservation to CANCELLED on behalf of the person
// who booked it.  Its windows stop blocking the room immediately.
func (e *Engine) Cancel(ctx context.Context, reservationID, actorID uint64) error {
	log := e.opLogger("cancel", zap.Uint64("reservation_id", reservationID), zap.Uint64("actor_id", actorID))
	now := e.clock()
	err := e.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		if _, err := lockOwnedReservation(ctx, q, reservationID, actorID); err != nil {
			return err
		}
		ok, err := q.TransitionStatus(ctx, reservationID, model.StatusActive, model.StatusCancelled, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotActive
		}
		return nil
	})
	if err != nil {
		logOutcome(log, err, "reservation cancel")
		return err
	}
	logOutcome(log, nil, "reservation cancelled")
	return nil
}
