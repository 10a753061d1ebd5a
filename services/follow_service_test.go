package services_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safespace/models"
	"safespace/services"
	"safespace/store"
)

func TestFollowStatsCountAllEdges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	target := f.createUser(t, "target")

	// More edges than a single default page
	const n = store.DefaultLimit + 7
	for i := range n {
		_, err := f.follows.FollowUser(ctx, fmt.Sprintf("fan-%d", i), target.ID)
		require.NoError(t, err)
	}
	_, err := f.follows.FollowUser(ctx, target.ID, "fan-0")
	require.NoError(t, err)

	stats, err := f.follows.GetUserFollowStats(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStats{Followers: n, Following: 1}, stats)
}

func TestFollowStatsFailClosed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.docs.set(f.docs.failList, models.FollowersCollection, store.ErrUnavailable)

	stats, err := f.follows.GetUserFollowStats(t.Context(), "someone")
	require.ErrorIs(t, err, services.ErrUnavailable)
	assert.Equal(t, models.FollowStats{}, stats)
}

func TestFollowUnfollowRoundTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	x := f.createUser(t, "x")
	y := f.createUser(t, "y")

	_, err := f.follows.FollowUser(ctx, "other", y.ID)
	require.NoError(t, err)

	before, err := f.follows.GetUserFollowStats(ctx, y.ID)
	require.NoError(t, err)

	status, err := f.follows.CheckIsFollowing(ctx, y.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStatus{IsFollowing: false, State: models.FollowStateKnown}, status)

	edge, err := f.follows.FollowUser(ctx, x.ID, y.ID)
	require.NoError(t, err)

	status, err = f.follows.CheckIsFollowing(ctx, y.ID, x.ID)
	require.NoError(t, err)
	assert.True(t, status.IsFollowing)
	assert.Equal(t, edge.ID, status.FollowID)

	during, err := f.follows.GetUserFollowStats(ctx, y.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Followers+1, during.Followers)

	require.NoError(t, f.follows.UnfollowUser(ctx, status.FollowID))

	status, err = f.follows.CheckIsFollowing(ctx, y.ID, x.ID)
	require.NoError(t, err)
	assert.False(t, status.IsFollowing)
	assert.Empty(t, status.FollowID)

	after, err := f.follows.GetUserFollowStats(ctx, y.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFollowTwiceConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	x := f.createUser(t, "x")
	y := f.createUser(t, "y")

	edge, err := f.follows.FollowUser(ctx, x.ID, y.ID)
	require.NoError(t, err)
	assert.Equal(t, services.FollowID(x.ID, y.ID), edge.ID)

	_, err = f.follows.FollowUser(ctx, x.ID, y.ID)
	require.ErrorIs(t, err, services.ErrConflict)

	stats, err := f.follows.GetUserFollowStats(ctx, y.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStats{Followers: 1}, stats)

	// The reverse edge is a different pair
	_, err = f.follows.FollowUser(ctx, y.ID, x.ID)
	require.NoError(t, err)

	got, err := f.follows.GetFollow(ctx, edge.ID)
	require.NoError(t, err)
	assert.Equal(t, x.ID, got.FollowerID)

	// Unfollowing frees the pair for a new follow
	require.NoError(t, f.follows.UnfollowUser(ctx, edge.ID))
	_, err = f.follows.GetFollow(ctx, edge.ID)
	require.ErrorIs(t, err, services.ErrNotFound)
	_, err = f.follows.FollowUser(ctx, x.ID, y.ID)
	require.NoError(t, err)
}

func TestCheckIsFollowingUnknownOnFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.docs.set(f.docs.failList, models.FollowersCollection, store.ErrUnavailable)

	status, err := f.follows.CheckIsFollowing(t.Context(), "y", "x")
	require.NoError(t, err)
	assert.False(t, status.IsFollowing)
	assert.Equal(t, models.FollowStateUnknown, status.State)
}

func TestFollowValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.follows.FollowUser(ctx, "same", "same")
	require.ErrorIs(t, err, services.ErrValidation)

	_, err = f.follows.FollowUser(ctx, "", "b")
	require.ErrorIs(t, err, services.ErrValidation)

	err = f.follows.UnfollowUser(ctx, "missing")
	require.ErrorIs(t, err, services.ErrNotFound)
}

func TestGetFollowersJoinsCurrentProfile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	target := f.createUser(t, "target")
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")

	_, err := f.follows.FollowUser(ctx, alice.ID, target.ID)
	require.NoError(t, err)
	_, err = f.follows.FollowUser(ctx, bob.ID, target.ID)
	require.NoError(t, err)

	followers, err := f.follows.GetFollowers(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, followers.Documents, 2)
	assert.Equal(t, 2, followers.Total)
	assert.Equal(t, alice.ID, followers.Documents[0].UserID)
	assert.Equal(t, "alice", followers.Documents[0].Name)
	assert.Equal(t, bob.ID, followers.Documents[1].FollowerID)

	// Renames show up on the next call
	_, err = f.users.UpdateUser(ctx, models.UpdateUser{UserID: alice.ID, Name: "Alice Renamed"})
	require.NoError(t, err)

	followers, err = f.follows.GetFollowers(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Renamed", followers.Documents[0].Name)
}

func TestGetFollowersEnumeratesEveryEdge(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	target := f.createUser(t, "target")
	fan := f.createUser(t, "fan")

	// Duplicate edges written behind the service's back are still listed
	for range 2 {
		_, err := f.docs.Create(ctx, models.FollowersCollection, store.UniqueID, map[string]any{
			"followerId":  fan.ID,
			"followingId": target.ID,
		})
		require.NoError(t, err)
	}

	followers, err := f.follows.GetFollowers(ctx, target.ID)
	require.NoError(t, err)
	assert.Len(t, followers.Documents, 2)
}

func TestGetFollowersFailsOnMissingProfile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	target := f.createUser(t, "target")
	fan := f.createUser(t, "fan")

	_, err := f.follows.FollowUser(ctx, fan.ID, target.ID)
	require.NoError(t, err)
	_, err = f.follows.FollowUser(ctx, "ghost", target.ID)
	require.NoError(t, err)

	followers, err := f.follows.GetFollowers(ctx, target.ID)
	require.ErrorIs(t, err, services.ErrNotFound)
	assert.Empty(t, followers.Documents)
}
