package gating

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/follow-scanner/internal/config"
	"github.com/follow-scanner/internal/types"
)

func rows(n int) []types.Profile {
	out := make([]types.Profile, n)
	for i := range out {
		out[i] = types.Profile{ID: uint64(i + 1)}
	}
	return out
}

func TestGate_Truncate(t *testing.T) {
	gate := NewGate(config.GatingConfig{FreeVisibleRows: 30})

	tests := []struct {
		name        string
		tier        types.UserTier
		n           int
		wantVisible int
		wantHidden  int
	}{
		{name: "free over limit", tier: types.TierFree, n: 45, wantVisible: 30, wantHidden: 15},
		{name: "free at limit", tier: types.TierFree, n: 30, wantVisible: 30, wantHidden: 0},
		{name: "free under limit", tier: types.TierFree, n: 4, wantVisible: 4, wantHidden: 0},
		{name: "free empty", tier: types.TierFree, n: 0, wantVisible: 0, wantHidden: 0},
		{name: "premium sees everything", tier: types.TierPremium, n: 500, wantVisible: 500, wantHidden: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visible, hidden := gate.Truncate(rows(tt.n), tt.tier)
			assert.Len(t, visible, tt.wantVisible)
			assert.Equal(t, tt.wantHidden, hidden)
			if tt.wantVisible > 0 {
				assert.Equal(t, uint64(1), visible[0].ID, "the visible rows are the leading prefix")
			}
		})
	}
}

func TestGate_TruncateCopies(t *testing.T) {
	gate := NewGate(config.GatingConfig{FreeVisibleRows: 2})
	in := rows(3)

	visible, _ := gate.Truncate(in, types.TierFree)
	visible[0].Handle = "changed"
	assert.Empty(t, in[0].Handle)
}

func TestGate_VisibleRows(t *testing.T) {
	gate := NewGate(config.GatingConfig{FreeVisibleRows: 30})
	assert.Equal(t, 30, gate.VisibleRows(types.TierFree))
	assert.Equal(t, Unlimited, gate.VisibleRows(types.TierPremium))
}
