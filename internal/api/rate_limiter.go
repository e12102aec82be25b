package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	apperrors "github.com/follow-scanner/internal/errors"
	"github.com/follow-scanner/internal/types"
)

// WalletHeader optionally identifies the caller's wallet for entitlement checks
const WalletHeader = "X-Wallet-Address"

// TierResolver maps a wallet (possibly empty) to its entitlement tier
type TierResolver func(ctx context.Context, wallet string) types.UserTier

// RateLimiter manages rate limiting for API requests
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	// Rate limits per tier (requests per second)
	freeTierLimit    rate.Limit
	premiumTierLimit rate.Limit

	// Burst size (number of requests that can be made in a burst)
	burstSize int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(freeTierRPS, premiumTierRPS int) *RateLimiter {
	return &RateLimiter{
		limiters:         make(map[string]*rate.Limiter),
		freeTierLimit:    rate.Limit(freeTierRPS),
		premiumTierLimit: rate.Limit(premiumTierRPS),
		burstSize:        10,
	}
}

func (rl *RateLimiter) limitFor(tier types.UserTier) rate.Limit {
	if tier == types.TierPremium {
		return rl.premiumTierLimit
	}
	return rl.freeTierLimit
}

// getLimiter returns the limiter for a caller. Limiters are kept per tier so
// an upgraded wallet picks up its new allowance immediately.
func (rl *RateLimiter) getLimiter(callerID string, tier types.UserTier) *rate.Limiter {
	key := string(tier) + ":" + callerID

	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := rl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.limitFor(tier), rl.burstSize)
	rl.limiters[key] = limiter

	return limiter
}

// clientIP strips the port from the remote address
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware creates a middleware that enforces rate limiting.
// Callers are keyed by wallet when one is supplied, else by IP address.
func RateLimitMiddleware(rl *RateLimiter, resolveTier TierResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wallet := r.Header.Get(WalletHeader)
			callerID := strings.ToLower(wallet)
			if callerID == "" {
				callerID = clientIP(r)
			}

			tier := types.TierFree
			if wallet != "" && resolveTier != nil {
				tier = resolveTier(r.Context(), wallet)
			}

			limiter := rl.getLimiter(callerID, tier)
			if !limiter.Allow() {
				respondServiceError(w, r, apperrors.NewRateLimitError(tier, float64(limiter.Limit())))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
