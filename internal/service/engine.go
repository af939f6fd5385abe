package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Policy holds the tunable time constants of the booking rules.
type Policy struct {
	GracePeriod         time.Duration // arrival grace after window start before forfeiture
	RescheduleLead      time.Duration // minimum time before the current start to reschedule
	ViolationLookback   time.Duration // trailing window for counting prior violations
	BlockDuration       time.Duration
	SuspensionDuration  time.Duration
	SuspensionThreshold int // violation number (prior + current) that triggers a suspension
	Location            *time.Location
}

// DefaultPolicy returns the standard booking rules.
func DefaultPolicy() Policy {
	return Policy{
		GracePeriod:         10 * time.Minute,
		RescheduleLead:      time.Hour,
		ViolationLookback:   30 * 24 * time.Hour,
		BlockDuration:       24 * time.Hour,
		SuspensionDuration:  7 * 24 * time.Hour,
		SuspensionThreshold: 3,
		Location:            time.UTC,
	}
}

const (
	maxCodeAttempts = 5
	notifyTimeout   = 5 * time.Second
)

// Engine is the booking scheduling and lifecycle engine.  It keeps no state
// between calls; the acting person is always passed explicitly.
type Engine struct {
	store    Store
	notifier Notifier
	lock     ScanLock
	policy   Policy
	now      func() time.Time
	newCode  func(time.Time) string
	logger   *zap.Logger
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithNotifier sets the violation notification sender.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithScanLock sets the advisory lock used to de-duplicate lifecycle scans.
func WithScanLock(l ScanLock) Option { return func(e *Engine) { e.lock = l } }

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithCodeGenerator overrides reservation code generation.
func WithCodeGenerator(gen func(time.Time) string) Option {
	return func(e *Engine) { e.newCode = gen }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// NewEngine wires the engine.  A nil store is a programming error.
func NewEngine(store Store, policy Policy, opts ...Option) *Engine {
	if store == nil {
		panic("nil store passed to NewEngine")
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	if policy.SuspensionThreshold <= 0 {
		policy.SuspensionThreshold = DefaultPolicy().SuspensionThreshold
	}
	e := &Engine{
		store:   store,
		policy:  policy,
		now:     time.Now,
		newCode: GenerateCode,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Policy returns the rules the engine was configured with.
func (e *Engine) Policy() Policy { return e.policy }

func (e *Engine) clock() time.Time {
	return e.now().In(e.policy.Location)
}

func (e *Engine) opLogger(op string, fields ...zap.Field) *zap.Logger {
	return e.logger.With(append([]zap.Field{zap.String("operation", op)}, fields...)...)
}

// logOutcome records the result of an operation at a level matching its
// error kind.
func logOutcome(l *zap.Logger, err error, msg string, fields ...zap.Field) {
	if err == nil {
		l.Info(msg, fields...)
		return
	}
	kind := ErrorKind(err)
	fields = append(fields, zap.String("error_kind", kind), zap.Error(err))
	if kind == "unexpected" || kind == "integrity" {
		l.Error(msg+" failed", fields...)
		return
	}
	l.Warn(msg+" rejected", fields...)
}

// GenerateCode returns a human readable reservation code such as
// RSV250601-3FA2C1.  Uniqueness is checked by the caller.
func GenerateCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("RSV%s-%s", now.Format("060102"), suffix)
}

// dispatch sends notices after the owning transaction committed.  Failures
// are logged and never retried here.
func (e *Engine) dispatch(ctx context.Context, notices []Notice) {
	if e.notifier == nil || len(notices) == 0 {
		return
	}
	for _, n := range notices {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		err := e.notifier.Notify(nctx, n)
		cancel()
		if err != nil {
			e.logger.Warn("violation notice not delivered",
				zap.Uint64("person_id", n.PersonID),
				zap.Int("severity", n.Severity),
				zap.String("reservation_code", n.ReservationCode),
				zap.Error(err))
			continue
		}
		e.logger.Debug("violation notice sent",
			zap.Uint64("person_id", n.PersonID),
			zap.Int("severity", n.Severity))
	}
}
