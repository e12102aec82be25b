// Package adapter talks to the social-graph API and turns its responses into
// normalized profiles.
package adapter

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/follow-scanner/internal/circuitbreaker"
	"github.com/follow-scanner/internal/config"
	apperrors "github.com/follow-scanner/internal/errors"
	"github.com/follow-scanner/internal/logging"
	"github.com/follow-scanner/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// userLookup labels errors from the single-profile endpoint
const userLookup types.Collection = "user"

// maxErrorBody caps how much of an upstream error body is kept
const maxErrorBody = 1024

// NeynarClient pages through the follower graph endpoints
type NeynarClient struct {
	apiKey     string
	baseURL    string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
}

// PageResult is one fully drained collection
type PageResult struct {
	Profiles []types.Profile
	Pages    int
	// Partial is set when a later page failed and paging stopped early
	Partial bool
	// Dropped counts records without a usable account id
	Dropped int
}

// pageResponse is the envelope shared by the followers and following endpoints
type pageResponse struct {
	Users []types.RawRecord `json:"users"`
	Next  *struct {
		Cursor *string `json:"cursor"`
	} `json:"next"`
}

func (r *pageResponse) cursor() string {
	if r.Next == nil || r.Next.Cursor == nil {
		return ""
	}
	return *r.Next.Cursor
}

// NewNeynarClient creates a client from the upstream configuration
func NewNeynarClient(cfg *config.UpstreamConfig) *NeynarClient {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	breakerCfg := circuitbreaker.DefaultConfig("neynar")
	breakerCfg.IsFailure = countsAgainstUpstream

	return &NeynarClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		breaker:    circuitbreaker.NewCircuitBreaker(breakerCfg),
	}
}

// countsAgainstUpstream keeps client errors like an unknown fid from tripping the breaker
func countsAgainstUpstream(err error) bool {
	catErr := apperrors.Categorize(err)
	if catErr.Category == apperrors.CategoryNetwork {
		return true
	}
	status, _ := catErr.Details["upstreamStatus"].(int)
	return status >= 500 || status == http.StatusTooManyRequests
}

// FetchAll drains one collection for an account.
// Pages are requested strictly in sequence until the upstream stops issuing
// a cursor. A page failure after records were collected ends paging with a
// partial result; a failure before that is returned to the caller.
func (c *NeynarClient) FetchAll(ctx context.Context, collection types.Collection, accountID uint64) (*PageResult, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"collection": collection,
		"accountId":  accountID,
	})

	result := &PageResult{}
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := c.fetchPage(ctx, collection, accountID, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if len(result.Profiles) == 0 {
				logger.WithError(err).WithField("page", result.Pages+1).Error("First page of collection failed")
				return nil, err
			}
			result.Partial = true
			logger.WithError(err).WithFields(map[string]interface{}{
				"page":      result.Pages + 1,
				"collected": len(result.Profiles),
			}).Warn("Page failed mid-scan, returning partial collection")
			break
		}
		result.Pages++

		for _, raw := range page.Users {
			profile, ok := Normalize(raw)
			if !ok {
				result.Dropped++
				continue
			}
			result.Profiles = append(result.Profiles, profile)
		}

		logger.WithFields(map[string]interface{}{
			"page":      result.Pages,
			"users":     len(page.Users),
			"collected": len(result.Profiles),
		}).Debug("Fetched page")

		cursor = page.cursor()
		if cursor == "" {
			break
		}
	}

	if result.Dropped > 0 {
		logger.WithField("dropped", result.Dropped).Warn("Dropped records without an account id")
	}
	logger.WithFields(map[string]interface{}{
		"pages":   result.Pages,
		"total":   len(result.Profiles),
		"partial": result.Partial,
	}).Info("Collection fetched")

	return result, nil
}

func (c *NeynarClient) fetchPage(ctx context.Context, collection types.Collection, accountID uint64, cursor string) (*pageResponse, error) {
	params := url.Values{}
	params.Set("fid", strconv.FormatUint(accountID, 10))
	params.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	body, err := c.get(ctx, collection, fmt.Sprintf("%s/%s?%s", c.baseURL, collection, params.Encode()))
	if err != nil {
		return nil, err
	}

	var page pageResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, apperrors.NewUpstreamError(collection, http.StatusOK, "malformed page: "+truncate(string(body)))
	}
	return &page, nil
}

// FetchUser looks up one profile by account id
func (c *NeynarClient) FetchUser(ctx context.Context, accountID uint64) (*types.Profile, error) {
	id := strconv.FormatUint(accountID, 10)
	body, err := c.get(ctx, userLookup, fmt.Sprintf("%s/user/bulk?fids=%s", c.baseURL, id))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Users []types.RawRecord `json:"users"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewUpstreamError(userLookup, http.StatusOK, "malformed response: "+truncate(string(body)))
	}

	for _, raw := range resp.Users {
		if profile, ok := Normalize(raw); ok {
			return &profile, nil
		}
	}
	return nil, apperrors.NewNotFoundError("user", id)
}

// get performs one rate-limited, breaker-guarded request and returns the body
// of a 2xx response. Failures come back as categorized errors.
func (c *NeynarClient) get(ctx context.Context, collection types.Collection, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// the wait would outlast the caller's deadline
		return nil, apperrors.NewNetworkError(collection, fmt.Errorf("upstream rate limit: %w", err))
	}

	var body []byte
	err := c.breaker.Execute(ctx, func() error {
		var reqErr error
		body, reqErr = c.doRequest(ctx, collection, reqURL)
		return reqErr
	})
	if stderrors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil, apperrors.NewNetworkError(collection, err)
	}
	return body, err
}

func (c *NeynarClient) doRequest(ctx context.Context, collection types.Collection, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create request", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError(collection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError(collection, fmt.Errorf("failed to read response: %w", err))
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"collection": collection,
		"status":     resp.StatusCode,
		"durationMs": time.Since(start).Milliseconds(),
	}).Debug("Upstream request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewUpstreamError(collection, resp.StatusCode, truncate(string(body)))
	}
	return body, nil
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
