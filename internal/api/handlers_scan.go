package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/follow-scanner/internal/errors"
	"github.com/follow-scanner/internal/gating"
	"github.com/follow-scanner/internal/relationship"
	"github.com/follow-scanner/internal/service"
	"github.com/follow-scanner/internal/types"
)

// scanQuery is the query string of GET /relationship-scan
type scanQuery struct {
	AccountID string `query:"accountId" validate:"required,numeric"`
	Sort      string `query:"sort" validate:"omitempty,oneof=handle followers id score"`
	Refresh   string `query:"refresh" validate:"omitempty,boolean"`
	Wallet    string `header:"X-Wallet-Address" validate:"omitempty,eth_addr"`
}

// ScanResponse is the relationship scan payload after sorting and gating.
// Lists are sorted and truncated for the caller's tier; totals always count
// the complete sets.
type ScanResponse struct {
	types.ScanResult
	ScanID      string               `json:"scanId"`
	AccountID   uint64               `json:"accountId"`
	ScannedAt   time.Time            `json:"scannedAt"`
	Cached      bool                 `json:"cached"`
	Partial     types.PartialFlags   `json:"partial"`
	Warnings    []string             `json:"warnings"`
	Tier        types.UserTier       `json:"tier"`
	Sort        relationship.SortKey `json:"sort"`
	VisibleRows int                  `json:"visibleRows"`
	Hidden      types.Totals         `json:"hidden"`
	NextScanAt  time.Time            `json:"nextScanAt"`
	NextScanIn  string               `json:"nextScanIn"`
	LastUpdated string               `json:"lastUpdated"`
}

// handleRelationshipScan handles GET /relationship-scan
func (s *Server) handleRelationshipScan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := scanQuery{
		AccountID: q.Get("accountId"),
		Sort:      strings.ToLower(strings.TrimSpace(q.Get("sort"))),
		Refresh:   q.Get("refresh"),
		Wallet:    r.Header.Get(WalletHeader),
	}
	if err := validateRequest(req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	accountID, err := service.ValidateAccountID(req.AccountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	sortKey, err := relationship.ParseSortKey(req.Sort)
	if err != nil {
		respondServiceError(w, r, apperrors.NewInvalidParameterError("sort", err.Error()))
		return
	}
	refresh, _ := strconv.ParseBool(req.Refresh)

	tier := s.premiumService.Tier(r.Context(), req.Wallet)

	outcome, err := s.scanService.Scan(r.Context(), service.ScanRequest{
		AccountID: accountID,
		Tier:      tier,
		Refresh:   refresh,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, s.buildScanResponse(outcome, tier, sortKey))
}

func (s *Server) buildScanResponse(outcome *service.ScanOutcome, tier types.UserTier, sortKey relationship.SortKey) *ScanResponse {
	snap := outcome.Snapshot
	now := s.now()

	view := func(profiles []types.Profile) ([]types.Profile, int) {
		return s.gate.Truncate(relationship.SortProfiles(profiles, sortKey), tier)
	}

	resp := &ScanResponse{
		ScanID:      snap.ScanID,
		AccountID:   snap.AccountID,
		ScannedAt:   snap.Timestamp,
		Cached:      outcome.Cached,
		Partial:     snap.Partial,
		Warnings:    snap.Warnings,
		Tier:        tier,
		Sort:        sortKey,
		VisibleRows: s.gate.VisibleRows(tier),
		NextScanAt:  gating.NextScanAt(snap.Timestamp, tier),
		LastUpdated: gating.FormatAge(snap.Timestamp, now),
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	resp.NextScanIn = gating.FormatDuration(resp.NextScanAt.Sub(now))

	resp.Totals = snap.Result.Totals
	resp.Followers, resp.Hidden.Followers = view(snap.Result.Followers)
	resp.Following, resp.Hidden.Following = view(snap.Result.Following)
	resp.NotFollowingBack, resp.Hidden.NotFollowingBack = view(snap.Result.NotFollowingBack)
	resp.MutualFollows, resp.Hidden.MutualFollows = view(snap.Result.MutualFollows)
	resp.FansOnly, resp.Hidden.FansOnly = view(snap.Result.FansOnly)

	return resp
}
