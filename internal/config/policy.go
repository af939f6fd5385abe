package config

import (
	"fmt"
	"time"
)

// PolicyConfig carries the booking rule knobs and the lifecycle scan
// cadence.
type PolicyConfig struct {
	GracePeriod         time.Duration
	RescheduleLead      time.Duration
	ViolationLookback   time.Duration
	BlockDuration       time.Duration
	SuspensionDuration  time.Duration
	SuspensionThreshold int
	Location            *time.Location

	LifecycleTick     time.Duration // in-process ticker period, 0 disables it
	TriggerInterval   time.Duration // minimum gap between request-triggered scans
	LockTTL           time.Duration // expiry of the distributed scan lock
	LockKey           string
	RedisLockDisabled bool
}

// LoadPolicyConfig reads the policy variables.  Durations use Go syntax
// ("10m", "168h").
func LoadPolicyConfig() (PolicyConfig, error) {
	tz := envStr("APP_TIMEZONE", "Asia/Jakarta")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return PolicyConfig{}, fmt.Errorf("APP_TIMEZONE %q: %w", tz, err)
	}
	pc := PolicyConfig{
		GracePeriod:         envDur("BOOKING_GRACE_PERIOD", 10*time.Minute),
		RescheduleLead:      envDur("BOOKING_RESCHEDULE_LEAD", time.Hour),
		ViolationLookback:   envDur("VIOLATION_LOOKBACK", 30*24*time.Hour),
		BlockDuration:       envDur("VIOLATION_BLOCK_DURATION", 24*time.Hour),
		SuspensionDuration:  envDur("VIOLATION_SUSPENSION_DURATION", 7*24*time.Hour),
		SuspensionThreshold: envInt("VIOLATION_SUSPENSION_THRESHOLD", 3),
		Location:            loc,
		LifecycleTick:       envDur("LIFECYCLE_TICK", 0),
		TriggerInterval:     envDur("LIFECYCLE_TRIGGER_INTERVAL", 30*time.Second),
		LockTTL:             envDur("LIFECYCLE_LOCK_TTL", 30*time.Second),
		LockKey:             envStr("LIFECYCLE_LOCK_KEY", "lock:lifecycle-scan"),
		RedisLockDisabled:   envBool("LIFECYCLE_LOCK_DISABLED", false),
	}
	if pc.GracePeriod < 0 || pc.RescheduleLead < 0 {
		return PolicyConfig{}, fmt.Errorf("grace period and reschedule lead must not be negative")
	}
	if pc.ViolationLookback <= 0 || pc.BlockDuration <= 0 || pc.SuspensionDuration <= 0 {
		return PolicyConfig{}, fmt.Errorf("violation lookback and penalty durations must be positive")
	}
	if pc.SuspensionThreshold < 1 {
		return PolicyConfig{}, fmt.Errorf("VIOLATION_SUSPENSION_THRESHOLD must be at least 1")
	}
	if pc.LockTTL <= 0 {
		pc.LockTTL = 30 * time.Second
	}
	return pc, nil
}
