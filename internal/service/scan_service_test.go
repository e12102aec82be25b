package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/follow-scanner/internal/adapter"
	apperrors "github.com/follow-scanner/internal/errors"
	"github.com/follow-scanner/internal/gating"
	"github.com/follow-scanner/internal/storage"
	"github.com/follow-scanner/internal/types"
)

// Mock graph client for testing

type mockGraphClient struct {
	results map[types.Collection]*adapter.PageResult
	errs    map[types.Collection]error
	users   map[uint64]*types.Profile
	calls   int32
	// gate, when set, blocks fetches until closed
	gate chan struct{}
	// cancelled records that a gated fetch saw its context end
	cancelled atomic.Bool
}

func (m *mockGraphClient) FetchAll(ctx context.Context, collection types.Collection, accountID uint64) (*adapter.PageResult, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			m.cancelled.Store(true)
			return nil, ctx.Err()
		}
	}
	if err := m.errs[collection]; err != nil {
		return nil, err
	}
	if res, ok := m.results[collection]; ok {
		return res, nil
	}
	return &adapter.PageResult{Pages: 1}, nil
}

func (m *mockGraphClient) FetchUser(ctx context.Context, accountID uint64) (*types.Profile, error) {
	if p, ok := m.users[accountID]; ok {
		return p, nil
	}
	return nil, apperrors.NewNotFoundError("user", "x")
}

type failingSnapshotStore struct{}

func (failingSnapshotStore) Get(ctx context.Context, accountID uint64) (*types.Snapshot, bool, error) {
	return nil, false, errors.New("store down")
}

func (failingSnapshotStore) Save(ctx context.Context, snap *types.Snapshot) error {
	return errors.New("store down")
}

func profiles(ids ...uint64) []types.Profile {
	out := make([]types.Profile, len(ids))
	for i, id := range ids {
		out[i] = types.Profile{ID: id}
	}
	return out
}

func idsOf(ps []types.Profile) []uint64 {
	out := make([]uint64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

var fixedNow = time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

func newTestService(client GraphClient, store SnapshotStore) *ScanService {
	svc := NewScanService(client, store)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestValidateAccountID(t *testing.T) {
	id, err := ValidateAccountID("3621")
	require.NoError(t, err)
	assert.Equal(t, uint64(3621), id)

	for _, bad := range []string{"", "0", "-5", "abc", "1.5", "99999999999999999999999"} {
		_, err := ValidateAccountID(bad)
		require.Error(t, err, bad)
		assert.Equal(t, http.StatusBadRequest, apperrors.GetHTTPStatusCode(err))
	}
}

func TestScan_ReconcilesAndCaches(t *testing.T) {
	client := &mockGraphClient{results: map[types.Collection]*adapter.PageResult{
		types.CollectionFollowers: {Profiles: profiles(1, 2, 3), Pages: 1},
		types.CollectionFollowing: {Profiles: profiles(2, 3, 4), Pages: 1},
	}}
	cache := gating.NewSnapshotCache(storage.NewMemoryStore())
	svc := newTestService(client, cache)
	ctx := context.Background()

	out, err := svc.Scan(ctx, ScanRequest{AccountID: 9, Tier: types.TierFree})
	require.NoError(t, err)
	assert.False(t, out.Cached)

	snap := out.Snapshot
	assert.NotEmpty(t, snap.ScanID)
	assert.Equal(t, uint64(9), snap.AccountID)
	assert.Equal(t, fixedNow, snap.Timestamp)
	assert.Equal(t, []uint64{4}, idsOf(snap.Result.NotFollowingBack))
	assert.Equal(t, []uint64{2, 3}, idsOf(snap.Result.MutualFollows))
	assert.Equal(t, []uint64{1}, idsOf(snap.Result.FansOnly))
	assert.Equal(t, 3, snap.Result.Totals.Followers)
	assert.Empty(t, snap.Warnings)

	// second scan in the same window is served from cache
	again, err := svc.Scan(ctx, ScanRequest{AccountID: 9, Tier: types.TierFree})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, snap.ScanID, again.Snapshot.ScanID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&client.calls))
}

func TestScan_RefreshOnlyForPremium(t *testing.T) {
	client := &mockGraphClient{}
	svc := newTestService(client, gating.NewSnapshotCache(storage.NewMemoryStore()))
	ctx := context.Background()

	_, err := svc.Scan(ctx, ScanRequest{AccountID: 1, Tier: types.TierPremium})
	require.NoError(t, err)

	out, err := svc.Scan(ctx, ScanRequest{AccountID: 1, Tier: types.TierFree, Refresh: true})
	require.NoError(t, err)
	assert.True(t, out.Cached)

	out, err = svc.Scan(ctx, ScanRequest{AccountID: 1, Tier: types.TierPremium, Refresh: true})
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.Equal(t, int32(4), atomic.LoadInt32(&client.calls))
}

func TestScan_StaleSnapshotRescans(t *testing.T) {
	cache := gating.NewSnapshotCache(storage.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, cache.Save(ctx, &types.Snapshot{ScanID: "old", AccountID: 5, Timestamp: fixedNow.Add(-13 * time.Hour)}))

	svc := newTestService(&mockGraphClient{}, cache)

	out, err := svc.Scan(ctx, ScanRequest{AccountID: 5, Tier: types.TierPremium})
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.NotEqual(t, "old", out.Snapshot.ScanID)
}

func TestScan_PartialAndDroppedWarnings(t *testing.T) {
	client := &mockGraphClient{results: map[types.Collection]*adapter.PageResult{
		types.CollectionFollowers: {Profiles: profiles(1), Pages: 3, Partial: true},
		types.CollectionFollowing: {Profiles: profiles(1), Pages: 1, Dropped: 2},
	}}
	svc := newTestService(client, gating.NewSnapshotCache(storage.NewMemoryStore()))

	out, err := svc.Scan(context.Background(), ScanRequest{AccountID: 1, Tier: types.TierFree})
	require.NoError(t, err)
	assert.Equal(t, types.PartialFlags{Followers: true}, out.Snapshot.Partial)
	assert.Equal(t, []string{
		"followers list is incomplete: paging stopped after 3 pages",
		"2 following records without an account id were skipped",
	}, out.Snapshot.Warnings)
}

func TestScan_EmptyResultCarriesWarning(t *testing.T) {
	svc := newTestService(&mockGraphClient{}, gating.NewSnapshotCache(storage.NewMemoryStore()))

	out, err := svc.Scan(context.Background(), ScanRequest{AccountID: 1, Tier: types.TierFree})
	require.NoError(t, err)
	assert.Contains(t, out.Snapshot.Warnings, WarningNoData)
	assert.NotNil(t, out.Snapshot.Result.NotFollowingBack)
}

func TestScan_FirstPageFailure(t *testing.T) {
	upstreamErr := apperrors.NewUpstreamError(types.CollectionFollowing, http.StatusInternalServerError, "boom")
	client := &mockGraphClient{errs: map[types.Collection]error{types.CollectionFollowing: upstreamErr}}
	cache := gating.NewSnapshotCache(storage.NewMemoryStore())
	ctx := context.Background()

	// an older snapshot from a previous window must survive the failed scan
	previous := &types.Snapshot{ScanID: "prev", AccountID: 8, Timestamp: fixedNow.AddDate(0, 0, -8)}
	require.NoError(t, cache.Save(ctx, previous))

	svc := newTestService(client, cache)
	_, err := svc.Scan(ctx, ScanRequest{AccountID: 8, Tier: types.TierFree})
	require.Error(t, err)

	catErr := apperrors.Categorize(err)
	assert.Equal(t, apperrors.CodeUpstreamError, catErr.Code)
	assert.Equal(t, http.StatusBadGateway, catErr.StatusCode)
	assert.Equal(t, true, catErr.Details["retryable"])
	assert.Equal(t, previous.Timestamp, catErr.Details["cachedSnapshotAt"])
	assert.Equal(t, "boom", catErr.Details["upstreamBody"])

	// both collections were attempted; the sibling was not cancelled
	assert.Equal(t, int32(2), atomic.LoadInt32(&client.calls))

	stored, found, err := cache.Get(ctx, 8)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "prev", stored.ScanID)
}

func TestScan_FailureWithoutCache(t *testing.T) {
	client := &mockGraphClient{errs: map[types.Collection]error{
		types.CollectionFollowers: apperrors.NewNetworkError(types.CollectionFollowers, errors.New("dial tcp: refused")),
	}}
	svc := newTestService(client, gating.NewSnapshotCache(storage.NewMemoryStore()))

	_, err := svc.Scan(context.Background(), ScanRequest{AccountID: 8, Tier: types.TierFree})
	catErr := apperrors.Categorize(err)
	assert.Equal(t, apperrors.CodeNetworkError, catErr.Code)
	assert.Equal(t, true, catErr.Details["retryable"])
	_, hasCached := catErr.Details["cachedSnapshotAt"]
	assert.False(t, hasCached)
}

func TestScan_StoreFailuresDoNotFailScan(t *testing.T) {
	client := &mockGraphClient{results: map[types.Collection]*adapter.PageResult{
		types.CollectionFollowers: {Profiles: profiles(1), Pages: 1},
	}}
	svc := newTestService(client, failingSnapshotStore{})

	out, err := svc.Scan(context.Background(), ScanRequest{AccountID: 2, Tier: types.TierFree})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, idsOf(out.Snapshot.Result.FansOnly))
}

func TestScan_RejectsZeroAccount(t *testing.T) {
	client := &mockGraphClient{}
	svc := newTestService(client, gating.NewSnapshotCache(storage.NewMemoryStore()))

	_, err := svc.Scan(context.Background(), ScanRequest{})
	assert.True(t, apperrors.IsUserError(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&client.calls))
}

func TestScan_ConcurrentCallersShareFetch(t *testing.T) {
	client := &mockGraphClient{gate: make(chan struct{})}
	svc := newTestService(client, gating.NewSnapshotCache(storage.NewMemoryStore()))

	const callers = 5
	var wg sync.WaitGroup
	ids := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := svc.Scan(context.Background(), ScanRequest{AccountID: 77, Tier: types.TierFree})
			if assert.NoError(t, err) {
				ids[i] = out.Snapshot.ScanID
			}
		}(i)
	}

	// let the callers pile up behind the first fetch before releasing it
	time.Sleep(50 * time.Millisecond)
	close(client.gate)
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&client.calls))
}

func TestScan_CallerCancelDoesNotFailJoiners(t *testing.T) {
	client := &mockGraphClient{gate: make(chan struct{})}
	svc := newTestService(client, gating.NewSnapshotCache(storage.NewMemoryStore()))
	req := ScanRequest{AccountID: 77, Tier: types.TierFree}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Scan(firstCtx, req)
		firstDone <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&client.calls) == 2 }, time.Second, time.Millisecond)

	type outcome struct {
		out *ScanOutcome
		err error
	}
	secondDone := make(chan outcome, 1)
	go func() {
		out, err := svc.Scan(context.Background(), req)
		secondDone <- outcome{out, err}
	}()
	require.Eventually(t, func() bool { return svc.flightWaiters(77) == 2 }, time.Second, time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstDone, context.Canceled)
	require.Eventually(t, func() bool { return svc.flightWaiters(77) == 1 }, time.Second, time.Millisecond)

	close(client.gate)
	select {
	case got := <-secondDone:
		require.NoError(t, got.err)
		assert.NotEmpty(t, got.out.Snapshot.ScanID)
	case <-time.After(time.Second):
		t.Fatal("joined caller never returned")
	}
	assert.False(t, client.cancelled.Load())
	assert.Equal(t, int32(2), atomic.LoadInt32(&client.calls))
	assert.Equal(t, 0, svc.flightWaiters(77))
}

func TestScan_LastCallerLeavingCancelsFetch(t *testing.T) {
	client := &mockGraphClient{gate: make(chan struct{})}
	svc := newTestService(client, gating.NewSnapshotCache(storage.NewMemoryStore()))
	req := ScanRequest{AccountID: 77, Tier: types.TierFree}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Scan(ctx, req)
		done <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&client.calls) == 2 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Eventually(t, client.cancelled.Load, time.Second, time.Millisecond)
	assert.Equal(t, 0, svc.flightWaiters(77))

	// a later caller starts over instead of inheriting the cancelled fetch
	close(client.gate)
	out, err := svc.Scan(context.Background(), req)
	require.NoError(t, err)
	assert.NotNil(t, out.Snapshot)
	assert.Equal(t, int32(4), atomic.LoadInt32(&client.calls))
}

func TestLookupUser(t *testing.T) {
	client := &mockGraphClient{users: map[uint64]*types.Profile{4: {ID: 4, Handle: "d"}}}
	svc := newTestService(client, failingSnapshotStore{})

	p, err := svc.LookupUser(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "d", p.Handle)

	_, err = svc.LookupUser(context.Background(), 5)
	assert.Equal(t, http.StatusNotFound, apperrors.GetHTTPStatusCode(err))
}
