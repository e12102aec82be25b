package gating

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/follow-scanner/internal/config"
	apperrors "github.com/follow-scanner/internal/errors"
	"github.com/follow-scanner/internal/storage"
	"github.com/follow-scanner/internal/types"
)

// NormalizeWallet validates a hex wallet address and returns its lower-case form
func NormalizeWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if !common.IsHexAddress(wallet) {
		return "", apperrors.NewInvalidParameterError("wallet", "must be a 20-byte hex address")
	}
	return strings.ToLower(common.HexToAddress(wallet).Hex()), nil
}

type premiumRecord struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// PremiumService tracks premium expiry per wallet.
// Activation is recorded after the payment has been confirmed elsewhere.
type PremiumService struct {
	cache    *storage.CacheService
	duration time.Duration
	now      func() time.Time
}

// NewPremiumService creates a premium service on top of a key-value store
func NewPremiumService(store storage.Store, cfg config.GatingConfig) *PremiumService {
	days := cfg.PremiumDays
	if days <= 0 {
		days = 30
	}
	return &PremiumService{
		cache:    storage.NewCacheService(store),
		duration: time.Duration(days) * day,
		now:      time.Now,
	}
}

// Status returns the premium status of a wallet. An empty wallet is free tier.
func (s *PremiumService) Status(ctx context.Context, wallet string) (types.PremiumStatus, error) {
	if wallet == "" {
		return types.PremiumStatus{}, nil
	}
	addr, err := NormalizeWallet(wallet)
	if err != nil {
		return types.PremiumStatus{}, err
	}

	var rec premiumRecord
	found, err := s.cache.Get(ctx, storage.PremiumKey(addr), &rec)
	if err != nil {
		return types.PremiumStatus{}, apperrors.NewCacheError("premium lookup", err)
	}
	if !found {
		return types.PremiumStatus{}, nil
	}
	return premiumStatusAt(rec.ExpiresAt, s.now()), nil
}

// Activate starts a premium period for a wallet from now
func (s *PremiumService) Activate(ctx context.Context, wallet string) (types.PremiumStatus, error) {
	addr, err := NormalizeWallet(wallet)
	if err != nil {
		return types.PremiumStatus{}, err
	}

	now := s.now()
	rec := premiumRecord{ExpiresAt: now.Add(s.duration).UTC()}
	if err := s.cache.SetWithTTL(ctx, storage.PremiumKey(addr), rec, s.duration); err != nil {
		return types.PremiumStatus{}, apperrors.NewCacheError("premium activation", err)
	}
	return premiumStatusAt(rec.ExpiresAt, now), nil
}

// Tier resolves the entitlement tier of a wallet, treating lookup failures as free
func (s *PremiumService) Tier(ctx context.Context, wallet string) types.UserTier {
	status, err := s.Status(ctx, wallet)
	if err != nil {
		return types.TierFree
	}
	return status.Tier()
}

func premiumStatusAt(expiresAt, now time.Time) types.PremiumStatus {
	exp := expiresAt
	status := types.PremiumStatus{ExpiresAt: &exp}
	if remaining := expiresAt.Sub(now); remaining > 0 {
		status.IsActive = true
		status.DaysRemaining = int(math.Ceil(float64(remaining) / float64(day)))
	}
	return status
}
