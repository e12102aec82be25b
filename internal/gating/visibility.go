package gating

import (
	"github.com/follow-scanner/internal/config"
	"github.com/follow-scanner/internal/types"
)

// Unlimited is returned by VisibleRows when a tier sees every row
const Unlimited = -1

// Gate applies per-tier visibility limits to sorted sets
type Gate struct {
	freeVisibleRows int
}

// NewGate creates a gate from configuration
func NewGate(cfg config.GatingConfig) *Gate {
	return &Gate{freeVisibleRows: cfg.FreeVisibleRows}
}

// VisibleRows returns how many leading rows a tier may see, or Unlimited
func (g *Gate) VisibleRows(tier types.UserTier) int {
	if tier == types.TierPremium {
		return Unlimited
	}
	return g.freeVisibleRows
}

// Truncate splits a sorted set into the visible prefix and the hidden count.
// The returned slice shares no backing array with the input.
func (g *Gate) Truncate(profiles []types.Profile, tier types.UserTier) ([]types.Profile, int) {
	limit := g.VisibleRows(tier)
	if limit == Unlimited || limit >= len(profiles) {
		limit = len(profiles)
	}

	visible := make([]types.Profile, limit)
	copy(visible, profiles[:limit])
	return visible, len(profiles) - limit
}
