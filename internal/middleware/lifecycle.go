package middleware

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/room-reservation/internal/service"
)

// Scanner runs one lifecycle scan.
type Scanner interface {
	RunLifecycle(ctx context.Context) (service.ScanResult, error)
}

const scanTimeout = 30 * time.Second

// LifecycleTrigger piggybacks the lifecycle scan on API traffic: when a
// scan is due it runs before the request is handled, at most once per
// interval per process, so the handler sees settled state.  The scan
// context derives from base and also ends when the request is abandoned.
// Scan failures are logged and never fail the request.  Cross-process
// duplicates are absorbed by the scan itself.
func LifecycleTrigger(base context.Context, s Scanner, interval time.Duration, logger *zap.Logger) echo.MiddlewareFunc {
	if s == nil || interval <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if base == nil {
		base = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var last atomic.Int64
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now().UnixNano()
			prev := last.Load()
			if now-prev >= int64(interval) && last.CompareAndSwap(prev, now) {
				runScan(base, c.Request().Context(), s, logger)
			}
			return next(c)
		}
	}
}

func runScan(base, reqCtx context.Context, s Scanner, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(base, scanTimeout)
	defer cancel()
	stop := context.AfterFunc(reqCtx, cancel)
	defer stop()

	res, err := s.RunLifecycle(ctx)
	if err != nil {
		logger.Warn("triggered lifecycle scan failed", zap.Error(err))
		return
	}
	logger.Debug("triggered lifecycle scan",
		zap.Int("completed", res.Completed),
		zap.Int("forfeited", res.Forfeited),
		zap.Bool("skipped", res.Skipped))
}
