package model

import (
	"fmt"
	"strings"
	"time"
)

// VersionStatus marks whether a schedule row is the current window of its
// reservation or a superseded historical version.
type VersionStatus string

const (
	VersionActive     VersionStatus = "ACTIVE"
	VersionSuperseded VersionStatus = "SUPERSEDED"
)

// ParseVersionStatus converts a stored column value into a VersionStatus.
func ParseVersionStatus(s string) (VersionStatus, error) {
	switch VersionStatus(s) {
	case VersionActive, VersionSuperseded:
		return VersionStatus(s), nil
	}
	return "", fmt.Errorf("unknown schedule version status %q", s)
}

// TimeOfDay is a wall-clock time measured as seconds since midnight.
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

// NewTimeOfDay builds a TimeOfDay from hour, minute and second components.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	layout := "15:04:05"
	if strings.Count(s, ":") == 1 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
}

// Valid reports whether t lies within a single day.
func (t TimeOfDay) Valid() bool { return t >= 0 && t < secondsPerDay }

// String formats t as HH:MM:SS, the MySQL TIME representation.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, (int(t)%3600)/60, int(t)%60)
}

// Duration returns the offset from midnight.
func (t TimeOfDay) Duration() time.Duration { return time.Duration(t) * time.Second }

// On returns the instant at which the wall clock shows t on the date of d.
// Adding Duration to midnight differs from this on DST change days.
func (t TimeOfDay) On(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, int(t)/3600, (int(t)%3600)/60, int(t)%60, 0, d.Location())
}

// Window is a half-open time range [Start, End) on a single calendar date.
// Date always carries midnight in the engine's location.
type Window struct {
	Date  time.Time
	Start TimeOfDay
	End   TimeOfDay
}

// NewWindow normalises date to midnight in its own location.
func NewWindow(date time.Time, start, end TimeOfDay) Window {
	return Window{Date: DateOf(date), Start: start, End: end}
}

// DateOf truncates t to midnight in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartAt returns the absolute start instant of the window, read as wall
// clock time on Date in Date's location.
func (w Window) StartAt() time.Time { return w.Start.On(w.Date) }

// EndAt returns the absolute end instant of the window.
func (w Window) EndAt() time.Time { return w.End.On(w.Date) }

// Minutes returns the window length in whole minutes.
func (w Window) Minutes() int { return int(w.End-w.Start) / 60 }

// SameDate reports whether both windows fall on the same calendar date.
func (w Window) SameDate(o Window) bool {
	y1, m1, d1 := w.Date.Date()
	y2, m2, d2 := o.Date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// String renders the window for logs and messages.
func (w Window) String() string {
	return fmt.Sprintf("%s %s-%s", w.Date.Format("2006-01-02"), w.Start, w.End)
}

// Schedule is one version of a reservation's time window.  Rows are
// append-only: a reschedule supersedes the active row and inserts a new one.
//
// Fields:
//  ID               – primary key identifier.
//  ReservationID    – owning reservation.
//  Window           – date, start_time and end_time columns.
//  VersionStatus    – ACTIVE for the current window, SUPERSEDED otherwise.
//  RescheduleReason – reason supplied when this version replaced another.
//  CreatedAt        – creation timestamp.
type Schedule struct {
	ID               uint64        // schedules.id
	ReservationID    uint64        // schedules.reservation_id
	Window           Window        // schedules.date, start_time, end_time
	VersionStatus    VersionStatus // schedules.version_status
	RescheduleReason *string       // schedules.reschedule_reason (nullable)
	CreatedAt        time.Time     // schedules.created_at
}
