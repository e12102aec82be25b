package gating

import (
	"context"
	"time"

	apperrors "github.com/follow-scanner/internal/errors"
	"github.com/follow-scanner/internal/storage"
	"github.com/follow-scanner/internal/types"
)

// IsEligible reports whether a daily check-in is allowed at now.
// Check-ins reset at 00:00 UTC; a zero lastCheckIn means never checked in.
func IsEligible(lastCheckIn, now time.Time) bool {
	if lastCheckIn.IsZero() {
		return true
	}
	return WindowStart(lastCheckIn, types.TierPremium).Before(WindowStart(now, types.TierPremium))
}

// checkInClaimTTL keeps a day claim past the end of its UTC day
const checkInClaimTTL = 2 * day

type streakRecord struct {
	LastCheckIn time.Time `json:"lastCheckIn"`
	Streak      int       `json:"streak"`
}

// StreakTracker records daily check-ins per wallet
type StreakTracker struct {
	cache *storage.CacheService
	now   func() time.Time
}

// NewStreakTracker creates a streak tracker on top of a key-value store
func NewStreakTracker(store storage.Store) *StreakTracker {
	return &StreakTracker{cache: storage.NewCacheService(store), now: time.Now}
}

func (t *StreakTracker) load(ctx context.Context, addr string) (streakRecord, error) {
	var rec streakRecord
	if _, err := t.cache.Get(ctx, storage.StreakKey(addr), &rec); err != nil {
		return streakRecord{}, apperrors.NewCacheError("streak lookup", err)
	}
	return rec, nil
}

// Status returns the check-in state of a wallet
func (t *StreakTracker) Status(ctx context.Context, wallet string) (types.StreakStatus, error) {
	addr, err := NormalizeWallet(wallet)
	if err != nil {
		return types.StreakStatus{}, err
	}
	rec, err := t.load(ctx, addr)
	if err != nil {
		return types.StreakStatus{}, err
	}
	return streakStatusAt(rec, t.now()), nil
}

// CheckIn records today's check-in. The streak grows when the previous
// check-in was yesterday (UTC) and restarts at 1 otherwise.
func (t *StreakTracker) CheckIn(ctx context.Context, wallet string) (types.StreakStatus, error) {
	addr, err := NormalizeWallet(wallet)
	if err != nil {
		return types.StreakStatus{}, err
	}
	rec, err := t.load(ctx, addr)
	if err != nil {
		return types.StreakStatus{}, err
	}

	now := t.now().UTC()
	if !IsEligible(rec.LastCheckIn, now) {
		return types.StreakStatus{}, alreadyCheckedIn(now)
	}

	// the day claim decides between concurrent check-ins; the record write
	// below is then uncontended for this wallet and day
	claimed, err := t.cache.Claim(ctx, storage.CheckInKey(addr, now), checkInClaimTTL)
	if err != nil {
		return types.StreakStatus{}, apperrors.NewCacheError("check-in claim", err)
	}
	if !claimed {
		return types.StreakStatus{}, alreadyCheckedIn(now)
	}

	if continuesStreak(rec.LastCheckIn, now) {
		rec.Streak++
	} else {
		rec.Streak = 1
	}
	rec.LastCheckIn = now

	if err := t.cache.SetWithTTL(ctx, storage.StreakKey(addr), rec, 0); err != nil {
		return types.StreakStatus{}, apperrors.NewCacheError("streak update", err)
	}
	return streakStatusAt(rec, now), nil
}

func alreadyCheckedIn(now time.Time) error {
	return apperrors.NewConflictError("check-in", "already checked in today").
		WithDetail("nextResetAt", WindowEnd(now, types.TierPremium))
}

// continuesStreak reports whether last falls on the UTC day before now
func continuesStreak(last, now time.Time) bool {
	if last.IsZero() {
		return false
	}
	yesterday := WindowStart(now, types.TierPremium).AddDate(0, 0, -1)
	return WindowStart(last, types.TierPremium).Equal(yesterday)
}

func streakStatusAt(rec streakRecord, now time.Time) types.StreakStatus {
	status := types.StreakStatus{
		Eligible:    IsEligible(rec.LastCheckIn, now),
		NextResetAt: WindowEnd(now, types.TierPremium),
	}
	if rec.LastCheckIn.IsZero() {
		return status
	}

	last := rec.LastCheckIn
	status.LastCheckIn = &last
	// a lapsed streak reads as zero until the next check-in restarts it
	if !status.Eligible || continuesStreak(last, now) {
		status.Streak = rec.Streak
	}
	return status
}
