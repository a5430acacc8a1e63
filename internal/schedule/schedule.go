// Package schedule resolves --delay and --at into a delivery time.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidSchedule marks conflicting or malformed scheduling options.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Accepted --at layouts, in local time.
const (
	ClockLayout = "15:04"
	DateLayout  = "2006-01-02 15:04"
)

// Resolve returns when delivery should happen. delay and at are mutually
// exclusive; neither means now. An HH:MM already past today refers to
// tomorrow; a full date in the past means now.
func Resolve(delay time.Duration, at string, now time.Time) (time.Time, error) {
	at = strings.TrimSpace(at)
	if delay != 0 && at != "" {
		return time.Time{}, fmt.Errorf("%w: --delay and --at cannot be combined", ErrInvalidSchedule)
	}
	if delay < 0 {
		return time.Time{}, fmt.Errorf("%w: --delay cannot be negative", ErrInvalidSchedule)
	}
	if delay > 0 {
		return now.Add(delay), nil
	}
	if at == "" {
		return now, nil
	}

	loc := now.Location()
	if t, err := time.ParseInLocation(DateLayout, at, loc); err == nil {
		if t.Before(now) {
			return now, nil
		}
		return t, nil
	}
	if t, err := time.ParseInLocation(ClockLayout, at, loc); err == nil {
		y, m, d := now.Date()
		target := time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
		if !target.After(now) {
			target = target.AddDate(0, 0, 1)
		}
		return target, nil
	}
	return time.Time{}, fmt.Errorf("%w: --at %q must be HH:MM or YYYY-MM-DD HH:MM", ErrInvalidSchedule, at)
}

// Wait blocks until the wall clock reaches until or ctx is done.
func Wait(ctx context.Context, until time.Time) error {
	d := time.Until(until)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
