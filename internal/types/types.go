// Package types provides common type definitions for the follow scanner system.
package types

import (
	"encoding/json"
	"time"
)

// UserTier represents the entitlement tier of the caller
type UserTier string

const (
	// TierFree represents the free tier (weekly snapshot reuse, limited visible rows)
	TierFree UserTier = "free"
	// TierPremium represents the premium tier (daily snapshot reuse, all rows visible)
	TierPremium UserTier = "premium"
)

// Collection identifies one of the two paginated upstream collections
type Collection string

const (
	// CollectionFollowers is the list of accounts following the user
	CollectionFollowers Collection = "followers"
	// CollectionFollowing is the list of accounts the user follows
	CollectionFollowing Collection = "following"
)

// SetName identifies one of the three derived relationship sets
type SetName string

const (
	// SetNotFollowingBack is following minus followers
	SetNotFollowingBack SetName = "notFollowingBack"
	// SetMutualFollows is following intersected with followers
	SetMutualFollows SetName = "mutualFollows"
	// SetFansOnly is followers minus following
	SetFansOnly SetName = "fansOnly"
)

// RawRecord is one user entry exactly as the upstream returned it
type RawRecord = json.RawMessage

// Profile is the canonical normalized record for one account
type Profile struct {
	ID              uint64  `json:"id"`
	Handle          string  `json:"handle"`
	DisplayName     string  `json:"displayName"`
	AvatarURL       string  `json:"avatarUrl"`
	FollowerCount   int64   `json:"followerCount"`
	FollowingCount  int64   `json:"followingCount"`
	ReputationScore float64 `json:"reputationScore"`
	IsVerifiedBadge bool    `json:"isVerifiedBadge"`
}

// RelationshipSets holds the three sets derived from followers and following
type RelationshipSets struct {
	NotFollowingBack []Profile `json:"notFollowingBack"`
	MutualFollows    []Profile `json:"mutualFollows"`
	FansOnly         []Profile `json:"fansOnly"`
}

// Totals holds the size of every list in a scan result
type Totals struct {
	Followers        int `json:"followers"`
	Following        int `json:"following"`
	NotFollowingBack int `json:"notFollowingBack"`
	MutualFollows    int `json:"mutualFollows"`
	FansOnly         int `json:"fansOnly"`
}

// PartialFlags marks collections whose paging stopped early on a mid-page failure
type PartialFlags struct {
	Followers bool `json:"followers"`
	Following bool `json:"following"`
}

// Any reports whether either collection is partial
func (p PartialFlags) Any() bool {
	return p.Followers || p.Following
}

// ScanResult is the complete output of one relationship scan
type ScanResult struct {
	Followers        []Profile `json:"followers"`
	Following        []Profile `json:"following"`
	NotFollowingBack []Profile `json:"notFollowingBack"`
	MutualFollows    []Profile `json:"mutualFollows"`
	FansOnly         []Profile `json:"fansOnly"`
	Totals           Totals    `json:"totals"`
}

// Snapshot is a point-in-time materialization of a scan for one account
type Snapshot struct {
	ScanID    string       `json:"scanId"`
	AccountID uint64       `json:"accountId"`
	Timestamp time.Time    `json:"timestamp"`
	Result    ScanResult   `json:"result"`
	Partial   PartialFlags `json:"partial"`
	Warnings  []string     `json:"warnings,omitempty"`
}

// PremiumStatus describes the premium entitlement of one wallet
type PremiumStatus struct {
	IsActive      bool       `json:"isActive"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	DaysRemaining int        `json:"daysRemaining"`
}

// Tier maps the premium status to an entitlement tier
func (s PremiumStatus) Tier() UserTier {
	if s.IsActive {
		return TierPremium
	}
	return TierFree
}

// StreakStatus describes the daily check-in state of one wallet
type StreakStatus struct {
	LastCheckIn *time.Time `json:"lastCheckIn"`
	Streak      int        `json:"streak"`
	Eligible    bool       `json:"eligible"`
	NextResetAt time.Time  `json:"nextResetAt"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
