package gating

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/follow-scanner/internal/errors"
	"github.com/follow-scanner/internal/storage"
)

func TestIsEligible(t *testing.T) {
	tests := []struct {
		name string
		last time.Time
		want bool
	}{
		{"never checked in", time.Time{}, true},
		{"earlier today", wednesdayNoon.Add(-time.Hour), false},
		{"just after midnight today", time.Date(2025, 3, 12, 0, 0, 1, 0, time.UTC), false},
		{"just before midnight", time.Date(2025, 3, 11, 23, 59, 59, 0, time.UTC), true},
		{"last week", wednesdayNoon.AddDate(0, 0, -7), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEligible(tt.last, wednesdayNoon))
		})
	}
}

func TestStreakTracker_CheckIn(t *testing.T) {
	ctx := context.Background()
	now := wednesdayNoon
	tracker := NewStreakTracker(storage.NewMemoryStore())
	tracker.now = func() time.Time { return now }

	status, err := tracker.Status(ctx, testWallet)
	require.NoError(t, err)
	assert.True(t, status.Eligible)
	assert.Equal(t, 0, status.Streak)
	assert.Nil(t, status.LastCheckIn)

	status, err = tracker.CheckIn(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Streak)
	assert.False(t, status.Eligible)
	assert.Equal(t, time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC), status.NextResetAt)

	_, err = tracker.CheckIn(ctx, testWallet)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperrors.GetHTTPStatusCode(err))

	now = now.Add(20 * time.Hour)
	status, err = tracker.CheckIn(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Streak)

	// a missed day lapses the streak and the next check-in restarts it
	now = now.Add(48 * time.Hour)
	status, err = tracker.Status(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Streak)
	assert.True(t, status.Eligible)

	status, err = tracker.CheckIn(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Streak)
}

func TestStreakTracker_InvalidWallet(t *testing.T) {
	tracker := NewStreakTracker(storage.NewMemoryStore())
	_, err := tracker.CheckIn(context.Background(), "0xnope")
	assert.Equal(t, apperrors.CodeInvalidParameter, apperrors.Categorize(err).Code)
}

func TestStreakTracker_ConcurrentCheckInsSameDay(t *testing.T) {
	stores := map[string]func(t *testing.T) storage.Store{
		"memory": func(t *testing.T) storage.Store { return storage.NewMemoryStore() },
		"redis": func(t *testing.T) storage.Store {
			mr := miniredis.RunT(t)
			return storage.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			tracker := NewStreakTracker(newStore(t))
			tracker.now = func() time.Time { return wednesdayNoon }

			const callers = 8
			var (
				wg        sync.WaitGroup
				start     = make(chan struct{})
				succeeded int32
				conflicts int32
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := tracker.CheckIn(context.Background(), testWallet)
					switch {
					case err == nil:
						atomic.AddInt32(&succeeded, 1)
					case apperrors.GetHTTPStatusCode(err) == http.StatusConflict:
						atomic.AddInt32(&conflicts, 1)
					default:
						assert.NoError(t, err)
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int32(1), succeeded)
			assert.Equal(t, int32(callers-1), conflicts)

			status, err := tracker.Status(context.Background(), testWallet)
			require.NoError(t, err)
			assert.Equal(t, 1, status.Streak)
		})
	}
}
