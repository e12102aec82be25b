package relationship

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/follow-scanner/internal/types"
)

func profilesOf(ids ...uint64) []types.Profile {
	out := make([]types.Profile, len(ids))
	for i, id := range ids {
		out[i] = types.Profile{ID: id}
	}
	return out
}

func idsOf(profiles []types.Profile) []uint64 {
	out := make([]uint64, len(profiles))
	for i, p := range profiles {
		out[i] = p.ID
	}
	return out
}

func TestReconcile_Example(t *testing.T) {
	sets := Reconcile(profilesOf(1, 2, 3), profilesOf(2, 3, 4))

	assert.Equal(t, []uint64{4}, idsOf(sets.NotFollowingBack))
	assert.Equal(t, []uint64{2, 3}, idsOf(sets.MutualFollows))
	assert.Equal(t, []uint64{1}, idsOf(sets.FansOnly))
}

func TestReconcile_PreservesFollowingOrder(t *testing.T) {
	sets := Reconcile(profilesOf(9, 5, 7), profilesOf(7, 8, 5, 6, 9))

	assert.Equal(t, []uint64{7, 5, 9}, idsOf(sets.MutualFollows))
	assert.Equal(t, []uint64{8, 6}, idsOf(sets.NotFollowingBack))
}

func TestReconcile_DuplicateKeepsFirstOccurrence(t *testing.T) {
	following := []types.Profile{
		{ID: 2, Handle: "fresh"},
		{ID: 3},
		{ID: 2, Handle: "stale"},
	}
	followers := profilesOf(2)

	sets := Reconcile(followers, following)
	assert.Equal(t, []types.Profile{{ID: 2, Handle: "fresh"}}, sets.MutualFollows)
	assert.Equal(t, []uint64{3}, idsOf(sets.NotFollowingBack))

	result := BuildResult(followers, following)
	assert.Equal(t, 2, result.Totals.Following)
	assert.Equal(t, 1, result.Totals.MutualFollows)
}

func TestReconcile_EmptyInputs(t *testing.T) {
	following := profilesOf(4, 1, 3)

	sets := Reconcile(nil, following)
	assert.Equal(t, following, sets.NotFollowingBack)
	assert.Empty(t, sets.MutualFollows)
	assert.Empty(t, sets.FansOnly)

	sets = Reconcile(profilesOf(5, 6), nil)
	assert.Empty(t, sets.NotFollowingBack)
	assert.Empty(t, sets.MutualFollows)
	assert.Equal(t, []uint64{5, 6}, idsOf(sets.FansOnly))

	sets = Reconcile(nil, nil)
	assert.NotNil(t, sets.NotFollowingBack)
	assert.Empty(t, sets.NotFollowingBack)
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	followers := profilesOf(1, 1, 2)
	following := profilesOf(2, 2, 3)

	Reconcile(followers, following)
	assert.Equal(t, []uint64{1, 1, 2}, idsOf(followers))
	assert.Equal(t, []uint64{2, 2, 3}, idsOf(following))
}

func TestBuildResult_Totals(t *testing.T) {
	result := BuildResult(profilesOf(1, 2, 3), profilesOf(2, 3, 4))

	assert.Equal(t, types.Totals{
		Followers:        3,
		Following:        3,
		NotFollowingBack: 1,
		MutualFollows:    2,
		FansOnly:         1,
	}, result.Totals)
}

func toSet(ids []uint64) map[uint64]bool {
	s := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

func TestReconcile_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	idList := gen.SliceOf(gen.UInt64Range(1, 40))

	properties.Property("notFollowingBack and mutualFollows partition following", prop.ForAll(
		func(followerIDs, followingIDs []uint64) bool {
			sets := Reconcile(profilesOf(followerIDs...), profilesOf(followingIDs...))

			nfb := toSet(idsOf(sets.NotFollowingBack))
			mutual := toSet(idsOf(sets.MutualFollows))
			following := toSet(followingIDs)

			for id := range nfb {
				if mutual[id] {
					return false
				}
			}
			if len(nfb)+len(mutual) != len(following) {
				return false
			}
			for id := range following {
				if !nfb[id] && !mutual[id] {
					return false
				}
			}
			return len(sets.NotFollowingBack)+len(sets.MutualFollows) == len(following)
		},
		idList, idList,
	))

	properties.Property("fansOnly and mutual followers partition followers", prop.ForAll(
		func(followerIDs, followingIDs []uint64) bool {
			sets := Reconcile(profilesOf(followerIDs...), profilesOf(followingIDs...))

			fans := toSet(idsOf(sets.FansOnly))
			mutual := toSet(idsOf(sets.MutualFollows))
			followers := toSet(followerIDs)

			for id := range followers {
				if fans[id] == mutual[id] {
					return false
				}
			}
			for id := range fans {
				if !followers[id] {
					return false
				}
			}
			for id := range mutual {
				if !followers[id] {
					return false
				}
			}
			return true
		},
		idList, idList,
	))

	properties.Property("dedupe is idempotent and keeps first occurrences", prop.ForAll(
		func(ids []uint64) bool {
			once := Dedupe(profilesOf(ids...))
			twice := Dedupe(once)
			if len(once) != len(twice) || len(once) != len(toSet(ids)) {
				return false
			}
			seen := map[uint64]bool{}
			var want []uint64
			for _, id := range ids {
				if !seen[id] {
					seen[id] = true
					want = append(want, id)
				}
			}
			got := idsOf(once)
			for i := range want {
				if got[i] != want[i] {
					return false
				}
			}
			return true
		},
		idList,
	))

	properties.TestingRun(t)
}
