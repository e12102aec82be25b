// Package gating decides what a caller is entitled to see: whether a cached
// snapshot may be reused, how many rows of a set are visible, and the
// premium and check-in state that drive those decisions.
package gating

import (
	"fmt"
	"time"

	"github.com/follow-scanner/internal/types"
)

const day = 24 * time.Hour

// WindowStart returns the start of the UTC calendar window containing t.
// Premium windows are UTC days; free windows are ISO weeks starting Monday.
func WindowStart(t time.Time, tier types.UserTier) time.Time {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if tier == types.TierPremium {
		return start
	}
	// time.Weekday counts from Sunday; shift so Monday is 0
	offset := (int(start.Weekday()) + 6) % 7
	return start.AddDate(0, 0, -offset)
}

// WindowEnd returns the start of the window after the one containing t
func WindowEnd(t time.Time, tier types.UserTier) time.Time {
	start := WindowStart(t, tier)
	if tier == types.TierPremium {
		return start.AddDate(0, 0, 1)
	}
	return start.AddDate(0, 0, 7)
}

// IsFresh reports whether a snapshot taken at snapshotTime may still be
// served at now instead of running a new scan
func IsFresh(snapshotTime, now time.Time, tier types.UserTier) bool {
	if snapshotTime.IsZero() || snapshotTime.After(now) {
		return false
	}
	return !snapshotTime.Before(WindowStart(now, tier))
}

// NextScanAt is when a snapshot taken at snapshotTime stops being fresh
func NextScanAt(snapshotTime time.Time, tier types.UserTier) time.Time {
	return WindowEnd(snapshotTime, tier)
}

// FormatDuration renders a wait such as "3h 12m" or "2d 3h 12m"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / day)
	hours := int((d % day) / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// FormatAge renders how long ago something happened, e.g. "3h 12m ago"
func FormatAge(then, now time.Time) string {
	d := now.Sub(then)
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm ago", hours, minutes)
	}
	return fmt.Sprintf("%dm ago", minutes)
}
