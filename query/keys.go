package query

import (
	"slices"
	"strings"
)

// Op names a cached read.
type Op string

const (
	OpGetCurrentUser     Op = "getCurrentUser"
	OpGetUsers           Op = "getUsers"
	OpGetUserByID        Op = "getUserById"
	OpGetInfinitePosts   Op = "getInfinitePosts"
	OpGetRecentPosts     Op = "getRecentPosts"
	OpGetPostByID        Op = "getPostById"
	OpGetUserPosts       Op = "getUserPosts"
	OpGetSearchPosts     Op = "getSearchPosts"
	OpGetUserFollowStats Op = "getUserFollowStats"
	OpGetIsFollowing     Op = "getIsFollowing"
	OpGetFollowers       Op = "getFollowers"
	OpGetMessages        Op = "getMessages"
	OpGetUserDetails     Op = "getUserDetails"
	OpGetChatRooms       Op = "getChatRooms"
)

// keySeparator never appears in op names, so "op|" only prefixes keys of
// that op.
const keySeparator = "|"

// Key identifies one cached read: the operation and its parameters.
type Key struct {
	Op     Op
	Params []string
}

// NewKey builds a key.
func NewKey(op Op, params ...string) Key {
	return Key{Op: op, Params: params}
}

// String is the cache key.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(string(k.Op))
	b.WriteString(keySeparator)
	b.WriteString(strings.Join(k.Params, keySeparator))
	return b.String()
}

// prefix matches every key of op.
func (op Op) prefix() string {
	return string(op) + keySeparator
}

// Mutation names a write that invalidates cached reads.
type Mutation string

const (
	MutationCreatePost      Mutation = "createPost"
	MutationUpdatePost      Mutation = "updatePost"
	MutationDeletePost      Mutation = "deletePost"
	MutationLikePost        Mutation = "likePost"
	MutationSavePost        Mutation = "savePost"
	MutationDeleteSavedPost Mutation = "deleteSavedPost"
	MutationFollowUser      Mutation = "followUser"
	MutationUnfollowUser    Mutation = "unfollowUser"
	MutationUpdateUser      Mutation = "updateUser"
	MutationCreateChatRoom  Mutation = "createChatRoom"
	MutationSendMessage     Mutation = "sendMessage"
	MutationSignOut         Mutation = "signOut"
)

var (
	postFeeds = []Op{OpGetRecentPosts, OpGetInfinitePosts, OpGetSearchPosts}
	postLikes = []Op{OpGetPostByID, OpGetRecentPosts, OpGetInfinitePosts, OpGetSearchPosts, OpGetCurrentUser}
	follows   = []Op{OpGetUserFollowStats, OpGetIsFollowing, OpGetFollowers, OpGetCurrentUser}
)

// invalidations lists the reads each mutation drops once it succeeds.
var invalidations = map[Mutation][]Op{
	MutationCreatePost:      slices.Concat(postFeeds, []Op{OpGetUserPosts}),
	MutationDeletePost:      slices.Concat([]Op{OpGetPostByID, OpGetUserPosts}, postFeeds),
	MutationUpdatePost:      slices.Concat([]Op{OpGetPostByID, OpGetUserPosts}, postFeeds),
	MutationLikePost:        postLikes,
	MutationSavePost:        postLikes,
	MutationDeleteSavedPost: postLikes,
	MutationFollowUser:      follows,
	MutationUnfollowUser:    follows,
	MutationUpdateUser:      {OpGetCurrentUser, OpGetUserByID, OpGetUserDetails, OpGetUsers},
	MutationCreateChatRoom:  {OpGetChatRooms},
	MutationSendMessage:     {OpGetMessages, OpGetChatRooms},
	MutationSignOut:         {OpGetCurrentUser},
}

// Invalidates returns the reads dropped after m succeeds.
func Invalidates(m Mutation) []Op {
	return slices.Clone(invalidations[m])
}
