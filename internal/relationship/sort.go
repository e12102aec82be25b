package relationship

import (
	"fmt"
	"sort"
	"strings"

	"github.com/follow-scanner/internal/types"
)

// SortKey selects the display order of a set
type SortKey string

const (
	// SortByHandle orders alphabetically by handle, ignoring case
	SortByHandle SortKey = "handle"
	// SortByFollowers orders by follower count, largest first
	SortByFollowers SortKey = "followers"
	// SortByID orders by account id, smallest first
	SortByID SortKey = "id"
	// SortByScore orders by reputation score, highest first
	SortByScore SortKey = "score"
)

// DefaultSortKey matches the initial ordering of the scan view
const DefaultSortKey = SortByScore

// ParseSortKey validates a sort key; an empty string selects the default
func ParseSortKey(s string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(s))); key {
	case "":
		return DefaultSortKey, nil
	case SortByHandle, SortByFollowers, SortByID, SortByScore:
		return key, nil
	default:
		return "", fmt.Errorf("unknown sort key %q (want handle, followers, id or score)", s)
	}
}

// SortProfiles returns a newly ordered copy; ties keep their original order
func SortProfiles(profiles []types.Profile, key SortKey) []types.Profile {
	out := make([]types.Profile, len(profiles))
	copy(out, profiles)

	var less func(a, b types.Profile) bool
	switch key {
	case SortByHandle:
		less = func(a, b types.Profile) bool {
			return strings.ToLower(a.Handle) < strings.ToLower(b.Handle)
		}
	case SortByFollowers:
		less = func(a, b types.Profile) bool { return a.FollowerCount > b.FollowerCount }
	case SortByID:
		less = func(a, b types.Profile) bool { return a.ID < b.ID }
	case SortByScore:
		less = func(a, b types.Profile) bool { return a.ReputationScore > b.ReputationScore }
	default:
		return out
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// ParseSetName validates a set name
func ParseSetName(s string) (types.SetName, error) {
	switch name := types.SetName(s); name {
	case types.SetNotFollowingBack, types.SetMutualFollows, types.SetFansOnly:
		return name, nil
	default:
		return "", fmt.Errorf("unknown set %q (want notFollowingBack, mutualFollows or fansOnly)", s)
	}
}

// SelectSet picks one derived set out of a scan result
func SelectSet(result types.ScanResult, name types.SetName) []types.Profile {
	switch name {
	case types.SetNotFollowingBack:
		return result.NotFollowingBack
	case types.SetMutualFollows:
		return result.MutualFollows
	case types.SetFansOnly:
		return result.FansOnly
	default:
		return nil
	}
}
