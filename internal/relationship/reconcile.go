// Package relationship derives follow-back sets from follower and following
// lists and orders them for display. Everything here is a pure function of
// its inputs.
package relationship

import (
	"github.com/follow-scanner/internal/types"
)

// Dedupe drops repeated ids, keeping the first occurrence in input order.
// The input slice is not modified.
func Dedupe(profiles []types.Profile) []types.Profile {
	seen := make(map[uint64]struct{}, len(profiles))
	out := make([]types.Profile, 0, len(profiles))
	for _, p := range profiles {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

func idSet(profiles []types.Profile) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(profiles))
	for _, p := range profiles {
		set[p.ID] = struct{}{}
	}
	return set
}

// filter keeps the entries whose membership in set equals want, preserving order
func filter(profiles []types.Profile, set map[uint64]struct{}, want bool) []types.Profile {
	out := make([]types.Profile, 0)
	for _, p := range profiles {
		if _, in := set[p.ID]; in == want {
			out = append(out, p)
		}
	}
	return out
}

// Reconcile computes the three relationship sets.
// Mutuality is judged from the following list, so mutualFollows carries the
// following-side records in following order.
func Reconcile(followers, following []types.Profile) types.RelationshipSets {
	followers = Dedupe(followers)
	following = Dedupe(following)

	followerIDs := idSet(followers)
	followingIDs := idSet(following)

	return types.RelationshipSets{
		NotFollowingBack: filter(following, followerIDs, false),
		MutualFollows:    filter(following, followerIDs, true),
		FansOnly:         filter(followers, followingIDs, false),
	}
}

// BuildResult reconciles both lists and assembles the full scan result with totals.
// Followers and following in the result are the de-duplicated lists.
func BuildResult(followers, following []types.Profile) types.ScanResult {
	followers = Dedupe(followers)
	following = Dedupe(following)
	sets := Reconcile(followers, following)

	return types.ScanResult{
		Followers:        followers,
		Following:        following,
		NotFollowingBack: sets.NotFollowingBack,
		MutualFollows:    sets.MutualFollows,
		FansOnly:         sets.FansOnly,
		Totals: types.Totals{
			Followers:        len(followers),
			Following:        len(following),
			NotFollowingBack: len(sets.NotFollowingBack),
			MutualFollows:    len(sets.MutualFollows),
			FansOnly:         len(sets.FansOnly),
		},
	}
}
