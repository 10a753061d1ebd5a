package models

// Follow is a directed edge: FollowerID follows FollowingID.
type Follow struct {
	ID          string `json:"$id"`
	FollowerID  string `json:"followerId"`
	FollowingID string `json:"followingId"`
	CreatedAt   string `json:"$createdAt,omitempty"`
}

// FollowStats holds edge counts in both directions for one user.
type FollowStats struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
}

// FollowState tells whether a FollowStatus came from a successful lookup.
type FollowState string

const (
	FollowStateKnown   FollowState = "known"
	FollowStateUnknown FollowState = "unknown" // lookup failed, rendered as not following
)

// FollowStatus is the is-following view for an (actor, target) pair.
// FollowID is the edge id, needed to unfollow.
type FollowStatus struct {
	IsFollowing bool        `json:"isFollowing"`
	FollowID    string      `json:"followId,omitempty"`
	State       FollowState `json:"state"`
}

// FollowerView is a follow edge annotated with the follower's profile.
type FollowerView struct {
	Follow
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	ImageURL string `json:"imageUrl"`
	Name     string `json:"name"`
}

// FollowersCollection is the store collection for follow edges
const FollowersCollection = "followers"
