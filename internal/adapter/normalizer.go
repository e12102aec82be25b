package adapter

import (
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/follow-scanner/internal/types"
)

// PlaceholderAvatarURL is used when a record carries no avatar
const PlaceholderAvatarURL = "https://via.placeholder.com/150"

// UnknownDisplayName is used when a record has neither display name nor handle
const UnknownDisplayName = "Unknown"

// Field spellings seen across upstream endpoints and client revisions.
// Lookups try each path in order and take the first usable value.
var (
	idPaths          = [][]interface{}{{"fid"}, {"id"}}
	handlePaths      = [][]interface{}{{"username"}, {"handle"}}
	displayNamePaths = [][]interface{}{{"display_name"}, {"displayName"}}
	avatarPaths      = [][]interface{}{{"pfp_url"}, {"pfpUrl"}, {"avatarUrl"}}
	followerPaths    = [][]interface{}{{"follower_count"}, {"followerCount"}}
	followingPaths   = [][]interface{}{{"following_count"}, {"followingCount"}}
	scorePaths       = [][]interface{}{{"experimental", "neynar_user_score"}, {"neynar_score"}, {"neynarScore"}, {"reputationScore"}}
	badgePaths       = [][]interface{}{{"power_badge"}, {"powerBadge"}, {"isVerifiedBadge"}}
)

// Normalize maps one upstream record to a Profile.
// Records wrapped as {"user": {...}} are unwrapped first. Every field falls
// back to its default, so a best-effort profile is always returned; ok is
// false when the record carries no positive account id and must not reach
// reconciliation.
func Normalize(raw types.RawRecord) (types.Profile, bool) {
	record := jsoniter.Get(raw)
	if nested := record.Get("user"); nested.ValueType() == jsoniter.ObjectValue {
		record = nested
	}

	p := types.Profile{
		Handle:          firstString(record, handlePaths),
		FollowerCount:   nonNegative(firstInt(record, followerPaths)),
		FollowingCount:  nonNegative(firstInt(record, followingPaths)),
		ReputationScore: clampScore(firstFloat(record, scorePaths)),
		IsVerifiedBadge: firstBool(record, badgePaths),
	}

	p.DisplayName = firstString(record, displayNamePaths)
	if p.DisplayName == "" {
		p.DisplayName = p.Handle
	}
	if p.DisplayName == "" {
		p.DisplayName = UnknownDisplayName
	}

	p.AvatarURL = firstString(record, avatarPaths)
	if p.AvatarURL == "" {
		p.AvatarURL = PlaceholderAvatarURL
	}

	id, ok := accountID(record)
	p.ID = id
	return p, ok
}

// maxExactFloatID bounds ids written as 1.0 or 1e3 to what a float64 holds exactly
const maxExactFloatID = 1 << 53

func accountID(record jsoniter.Any) (uint64, bool) {
	for _, path := range idPaths {
		v := record.Get(path...)
		switch v.ValueType() {
		case jsoniter.NumberValue:
			// integers are read from the literal so ids above 2^53 stay exact
			if id, err := strconv.ParseUint(strings.TrimSpace(v.ToString()), 10, 64); err == nil {
				if id > 0 {
					return id, true
				}
				continue
			}
			f := v.ToFloat64()
			if f >= 1 && f == math.Trunc(f) && f <= maxExactFloatID {
				return uint64(f), true
			}
		case jsoniter.StringValue:
			if id, err := strconv.ParseUint(v.ToString(), 10, 64); err == nil && id > 0 {
				return id, true
			}
		}
	}
	return 0, false
}

func firstString(record jsoniter.Any, paths [][]interface{}) string {
	for _, path := range paths {
		if v := record.Get(path...); v.ValueType() == jsoniter.StringValue {
			if s := v.ToString(); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstInt(record jsoniter.Any, paths [][]interface{}) int64 {
	for _, path := range paths {
		if v := record.Get(path...); v.ValueType() == jsoniter.NumberValue {
			return v.ToInt64()
		}
	}
	return 0
}

func firstFloat(record jsoniter.Any, paths [][]interface{}) float64 {
	for _, path := range paths {
		if v := record.Get(path...); v.ValueType() == jsoniter.NumberValue {
			return v.ToFloat64()
		}
	}
	return 0
}

func firstBool(record jsoniter.Any, paths [][]interface{}) bool {
	for _, path := range paths {
		if v := record.Get(path...); v.ValueType() == jsoniter.BoolValue {
			return v.ToBool()
		}
	}
	return false
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func clampScore(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
