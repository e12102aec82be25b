// Package service orchestrates relationship scans: cache reuse, concurrent
// collection fetches, reconciliation and snapshot persistence.
package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/follow-scanner/internal/adapter"
	apperrors "github.com/follow-scanner/internal/errors"
	"github.com/follow-scanner/internal/gating"
	"github.com/follow-scanner/internal/logging"
	"github.com/follow-scanner/internal/relationship"
	"github.com/follow-scanner/internal/types"
)

// WarningNoData is attached when a reachable upstream returned nothing at all
const WarningNoData = "upstream returned no relationship data"

// GraphClient fetches collections and profiles from the social-graph API
type GraphClient interface {
	FetchAll(ctx context.Context, collection types.Collection, accountID uint64) (*adapter.PageResult, error)
	FetchUser(ctx context.Context, accountID uint64) (*types.Profile, error)
}

// SnapshotStore persists the latest snapshot per account
type SnapshotStore interface {
	Get(ctx context.Context, accountID uint64) (*types.Snapshot, bool, error)
	Save(ctx context.Context, snap *types.Snapshot) error
}

// ScanRequest describes one scan invocation
type ScanRequest struct {
	AccountID uint64
	Tier      types.UserTier
	// Refresh skips snapshot reuse; honored for premium callers only
	Refresh bool
}

// ScanOutcome is a snapshot plus how it was obtained
type ScanOutcome struct {
	Snapshot *types.Snapshot
	// Cached is set when the snapshot was reused without calling the upstream
	Cached bool
}

// ScanService runs relationship scans
type ScanService struct {
	client    GraphClient
	snapshots SnapshotStore
	inflight  singleflight.Group
	now       func() time.Time

	mu      sync.Mutex
	flights map[uint64]*scanFlight
	seq     uint64
}

// scanFlight is an upstream fetch shared by every caller scanning the same
// account. It runs on its own context, cancelled once no caller is waiting.
type scanFlight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewScanService creates a new scan service
func NewScanService(client GraphClient, snapshots SnapshotStore) *ScanService {
	return &ScanService{
		client:    client,
		snapshots: snapshots,
		now:       time.Now,
		flights:   make(map[uint64]*scanFlight),
	}
}

// ValidateAccountID parses an account id, which must be a positive integer
func ValidateAccountID(raw string) (uint64, error) {
	if raw == "" {
		return 0, apperrors.NewInvalidParameterError("accountId", "is required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewInvalidParameterError("accountId", "must be a positive integer")
	}
	return id, nil
}

// Scan returns a snapshot for the account, reusing a stored one while it is
// fresh for the caller's tier. Concurrent scans of the same account share a
// single upstream fetch.
func (s *ScanService) Scan(ctx context.Context, req ScanRequest) (*ScanOutcome, error) {
	if req.AccountID == 0 {
		return nil, apperrors.NewInvalidParameterError("accountId", "must be a positive integer")
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"accountId": req.AccountID,
		"tier":      req.Tier,
	})

	if !req.Refresh || req.Tier != types.TierPremium {
		if snap := s.cachedSnapshot(ctx, req.AccountID); snap != nil && gating.IsFresh(snap.Timestamp, s.now(), req.Tier) {
			logger.WithField("scanId", snap.ScanID).Debug("Serving fresh snapshot from cache")
			return &ScanOutcome{Snapshot: snap, Cached: true}, nil
		}
	}

	f := s.joinFlight(ctx, req.AccountID)
	defer s.leaveFlight(req.AccountID, f)

	ch := s.inflight.DoChan(f.key, func() (interface{}, error) {
		return s.runScan(f.ctx, req.AccountID)
	})
	select {
	case res := <-ch:
		if res.Shared {
			logger.Debug("Joined in-flight scan")
		}
		if res.Err != nil {
			return nil, s.failure(ctx, req.AccountID, res.Err)
		}
		return &ScanOutcome{Snapshot: res.Val.(*types.Snapshot)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// joinFlight registers the caller on the account's shared fetch, starting a
// new one when none is running. The fetch keeps the caller's context values
// but not its cancellation.
func (s *ScanService) joinFlight(ctx context.Context, accountID uint64) *scanFlight {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flights[accountID]
	if !ok {
		s.seq++
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &scanFlight{
			key:    strconv.FormatUint(accountID, 10) + "/" + strconv.FormatUint(s.seq, 10),
			ctx:    fctx,
			cancel: cancel,
		}
		s.flights[accountID] = f
	}
	f.waiters++
	return f
}

// leaveFlight drops the caller; the last one out cancels the fetch
func (s *ScanService) leaveFlight(accountID uint64, f *scanFlight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.flights[accountID] == f {
		delete(s.flights, accountID)
	}
}

// flightWaiters reports how many callers wait on the account's fetch
func (s *ScanService) flightWaiters(accountID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flights[accountID]; ok {
		return f.waiters
	}
	return 0
}

// runScan fetches both collections concurrently and reconciles them.
// The fetches do not cancel each other; each fails or degrades on its own.
func (s *ScanService) runScan(ctx context.Context, accountID uint64) (*types.Snapshot, error) {
	logger := logging.FromContext(ctx).WithField("accountId", accountID)
	start := s.now()

	var (
		g                          errgroup.Group
		followers, following       *adapter.PageResult
		followersErr, followingErr error
	)
	g.Go(func() error {
		followers, followersErr = s.client.FetchAll(ctx, types.CollectionFollowers, accountID)
		return followersErr
	})
	g.Go(func() error {
		following, followingErr = s.client.FetchAll(ctx, types.CollectionFollowing, accountID)
		return followingErr
	})
	if err := g.Wait(); err != nil {
		if followersErr != nil {
			return nil, followersErr
		}
		return nil, followingErr
	}

	result := relationship.BuildResult(followers.Profiles, following.Profiles)
	snap := &types.Snapshot{
		ScanID:    uuid.New().String(),
		AccountID: accountID,
		Timestamp: s.now().UTC(),
		Result:    result,
		Partial: types.PartialFlags{
			Followers: followers.Partial,
			Following: following.Partial,
		},
		Warnings: scanWarnings(followers, following),
	}

	if err := s.snapshots.Save(ctx, snap); err != nil {
		logger.WithError(err).Warn("Failed to cache snapshot")
	}

	logger.WithFields(map[string]interface{}{
		"scanId":     snap.ScanID,
		"followers":  result.Totals.Followers,
		"following":  result.Totals.Following,
		"partial":    snap.Partial.Any(),
		"durationMs": s.now().Sub(start).Milliseconds(),
	}).Info("Scan completed")

	return snap, nil
}

func scanWarnings(followers, following *adapter.PageResult) []string {
	var warnings []string
	for _, c := range []struct {
		name types.Collection
		res  *adapter.PageResult
	}{
		{types.CollectionFollowers, followers},
		{types.CollectionFollowing, following},
	} {
		if c.res.Partial {
			warnings = append(warnings, fmt.Sprintf("%s list is incomplete: paging stopped after %d pages", c.name, c.res.Pages))
		}
		if c.res.Dropped > 0 {
			warnings = append(warnings, fmt.Sprintf("%d %s records without an account id were skipped", c.res.Dropped, c.name))
		}
	}
	if len(followers.Profiles) == 0 && len(following.Profiles) == 0 {
		warnings = append(warnings, WarningNoData)
	}
	return warnings
}

// failure decorates a scan error with the last good snapshot time, if any
func (s *ScanService) failure(ctx context.Context, accountID uint64, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	catErr := apperrors.Categorize(err)
	if !apperrors.IsUpstream(catErr) && !apperrors.IsSystemError(catErr) {
		return catErr
	}

	catErr = catErr.WithDetail("retryable", catErr.StatusCode >= 500)
	if snap := s.cachedSnapshot(ctx, accountID); snap != nil {
		catErr = catErr.WithDetail("cachedSnapshotAt", snap.Timestamp)
	}
	return catErr
}

// cachedSnapshot reads the stored snapshot; store failures only cost a cache miss
func (s *ScanService) cachedSnapshot(ctx context.Context, accountID uint64) *types.Snapshot {
	snap, found, err := s.snapshots.Get(ctx, accountID)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("accountId", accountID).Warn("Snapshot cache read failed")
		return nil
	}
	if !found {
		return nil
	}
	return snap
}

// LookupUser fetches a single profile
func (s *ScanService) LookupUser(ctx context.Context, accountID uint64) (*types.Profile, error) {
	if accountID == 0 {
		return nil, apperrors.NewInvalidParameterError("accountId", "must be a positive integer")
	}
	return s.client.FetchUser(ctx, accountID)
}
