package query

import (
	"context"
	"strconv"

	"safespace/models"
	"safespace/services"
)

// Services are the access-layer services the API binds.
type Services struct {
	Auth    *services.AuthService
	Posts   *services.PostService
	Users   *services.UserService
	Follows *services.FollowService
	Chat    *services.ChatService
}

// API exposes every read through the cache and every write through the
// invalidation table. The view layer talks only to this type.
type API struct {
	client *Client
	svc    Services
}

// NewAPI binds svc to client.
func NewAPI(client *Client, svc Services) *API {
	return &API{client: client, svc: svc}
}

// Client returns the underlying query client.
func (a *API) Client() *Client {
	return a.client
}

// Auth

func (a *API) SignUp(ctx context.Context, form models.NewUser) (models.User, error) {
	return a.svc.Auth.CreateUserAccount(ctx, form)
}

func (a *API) SignIn(ctx context.Context, form models.SignIn) (models.Session, error) {
	return a.svc.Auth.SignInAccount(ctx, form)
}

func (a *API) SignOut(ctx context.Context, sessionID string) error {
	_, err := Mutate(ctx, a.client, MutationSignOut, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.svc.Auth.SignOutAccount(ctx, sessionID)
	})
	return err
}

// CurrentUser is keyed by session so two sessions never share an entry.
func (a *API) CurrentUser(ctx context.Context, sessionID string) (models.User, error) {
	return Fetch(ctx, a.client, NewKey(OpGetCurrentUser, sessionID), func(ctx context.Context) (models.User, error) {
		return a.svc.Auth.GetCurrentUser(ctx, sessionID)
	})
}

// Users

// Users lists the newest users without the viewer.
func (a *API) Users(ctx context.Context, viewerID string, limit int) (models.DocumentList[models.User], error) {
	list, err := Fetch(ctx, a.client, NewKey(OpGetUsers, strconv.Itoa(limit)), func(ctx context.Context) (models.DocumentList[models.User], error) {
		return a.svc.Users.GetUsers(ctx, limit)
	})
	if err != nil {
		return list, err
	}
	return withoutUser(list, viewerID), nil
}

func (a *API) UserByID(ctx context.Context, userID string) (models.User, error) {
	return Fetch(ctx, a.client, NewKey(OpGetUserByID, userID), func(ctx context.Context) (models.User, error) {
		return a.svc.Users.GetUserByID(ctx, userID)
	})
}

func (a *API) UserDetails(ctx context.Context, userID string) (models.User, error) {
	return Fetch(ctx, a.client, NewKey(OpGetUserDetails, userID), func(ctx context.Context) (models.User, error) {
		return a.svc.Users.GetUserDetails(ctx, userID)
	})
}

func (a *API) UpdateUser(ctx context.Context, form models.UpdateUser) (models.User, error) {
	return Mutate(ctx, a.client, MutationUpdateUser, func(ctx context.Context) (models.User, error) {
		return a.svc.Users.UpdateUser(ctx, form)
	})
}

// Posts

// RecentPosts is the home feed without the viewer's own posts.
func (a *API) RecentPosts(ctx context.Context, viewerID string) (models.DocumentList[models.Post], error) {
	list, err := Fetch(ctx, a.client, NewKey(OpGetRecentPosts), a.svc.Posts.GetRecentPosts)
	if err != nil {
		return list, err
	}
	return withoutCreator(list, viewerID), nil
}

// SearchPosts searches captions. An empty term is not sent to the store.
func (a *API) SearchPosts(ctx context.Context, term, viewerID string) (models.DocumentList[models.Post], error) {
	if term == "" {
		return models.DocumentList[models.Post]{Documents: []models.Post{}}, nil
	}
	list, err := Fetch(ctx, a.client, NewKey(OpGetSearchPosts, term), func(ctx context.Context) (models.DocumentList[models.Post], error) {
		return a.svc.Posts.SearchPosts(ctx, term)
	})
	if err != nil {
		return list, err
	}
	return withoutCreator(list, viewerID), nil
}

func (a *API) PostByID(ctx context.Context, postID string) (models.Post, error) {
	return Fetch(ctx, a.client, NewKey(OpGetPostByID, postID), func(ctx context.Context) (models.Post, error) {
		return a.svc.Posts.GetPostByID(ctx, postID)
	})
}

func (a *API) UserPosts(ctx context.Context, userID string) (models.DocumentList[models.Post], error) {
	return Fetch(ctx, a.client, NewKey(OpGetUserPosts, userID), func(ctx context.Context) (models.DocumentList[models.Post], error) {
		return a.svc.Posts.GetUserPosts(ctx, userID)
	})
}

func (a *API) CreatePost(ctx context.Context, form models.NewPost) (models.Post, error) {
	return Mutate(ctx, a.client, MutationCreatePost, func(ctx context.Context) (models.Post, error) {
		return a.svc.Posts.CreatePost(ctx, form)
	})
}

func (a *API) UpdatePost(ctx context.Context, form models.UpdatePost) (models.Post, error) {
	return Mutate(ctx, a.client, MutationUpdatePost, func(ctx context.Context) (models.Post, error) {
		return a.svc.Posts.UpdatePost(ctx, form)
	})
}

func (a *API) DeletePost(ctx context.Context, postID, imageID string) error {
	_, err := Mutate(ctx, a.client, MutationDeletePost, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.svc.Posts.DeletePost(ctx, postID, imageID)
	})
	return err
}

func (a *API) LikePost(ctx context.Context, postID string, likes []string) (models.Post, error) {
	return Mutate(ctx, a.client, MutationLikePost, func(ctx context.Context) (models.Post, error) {
		return a.svc.Posts.LikePost(ctx, postID, likes)
	})
}

func (a *API) SavePost(ctx context.Context, userID, postID string) (models.Save, error) {
	return Mutate(ctx, a.client, MutationSavePost, func(ctx context.Context) (models.Save, error) {
		return a.svc.Posts.SavePost(ctx, userID, postID)
	})
}

// Save reads a bookmark straight from the store for ownership checks.
func (a *API) Save(ctx context.Context, saveID string) (models.Save, error) {
	return a.svc.Posts.GetSave(ctx, saveID)
}

func (a *API) DeleteSavedPost(ctx context.Context, saveID string) error {
	_, err := Mutate(ctx, a.client, MutationDeleteSavedPost, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.svc.Posts.DeleteSavedPost(ctx, saveID)
	})
	return err
}

// Follows

func (a *API) FollowStats(ctx context.Context, userID string) (models.FollowStats, error) {
	return Fetch(ctx, a.client, NewKey(OpGetUserFollowStats, userID), func(ctx context.Context) (models.FollowStats, error) {
		return a.svc.Follows.GetUserFollowStats(ctx, userID)
	})
}

func (a *API) IsFollowing(ctx context.Context, userID, currentUserID string) (models.FollowStatus, error) {
	return Fetch(ctx, a.client, NewKey(OpGetIsFollowing, userID, currentUserID), func(ctx context.Context) (models.FollowStatus, error) {
		return a.svc.Follows.CheckIsFollowing(ctx, userID, currentUserID)
	})
}

func (a *API) Followers(ctx context.Context, userID string) (models.DocumentList[models.FollowerView], error) {
	return Fetch(ctx, a.client, NewKey(OpGetFollowers, userID), func(ctx context.Context) (models.DocumentList[models.FollowerView], error) {
		return a.svc.Follows.GetFollowers(ctx, userID)
	})
}

func (a *API) FollowUser(ctx context.Context, followerID, followingID string) (models.Follow, error) {
	return Mutate(ctx, a.client, MutationFollowUser, func(ctx context.Context) (models.Follow, error) {
		return a.svc.Follows.FollowUser(ctx, followerID, followingID)
	})
}

// Follow reads an edge straight from the store for ownership checks.
func (a *API) Follow(ctx context.Context, followID string) (models.Follow, error) {
	return a.svc.Follows.GetFollow(ctx, followID)
}

func (a *API) UnfollowUser(ctx context.Context, followID string) error {
	_, err := Mutate(ctx, a.client, MutationUnfollowUser, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.svc.Follows.UnfollowUser(ctx, followID)
	})
	return err
}

// Chat

// ChatRoom reads a room straight from the store. Participants never change,
// so membership checks need no cache.
func (a *API) ChatRoom(ctx context.Context, chatRoomID string) (models.ChatRoom, error) {
	return a.svc.Chat.GetChatRoom(ctx, chatRoomID)
}

func (a *API) ChatRooms(ctx context.Context, userID string) (models.DocumentList[models.ChatRoomView], error) {
	return Fetch(ctx, a.client, NewKey(OpGetChatRooms, userID), func(ctx context.Context) (models.DocumentList[models.ChatRoomView], error) {
		return a.svc.Chat.GetChatRooms(ctx, userID)
	})
}

func (a *API) Messages(ctx context.Context, chatRoomID string) (models.DocumentList[models.Message], error) {
	return Fetch(ctx, a.client, NewKey(OpGetMessages, chatRoomID), func(ctx context.Context) (models.DocumentList[models.Message], error) {
		return a.svc.Chat.GetMessages(ctx, chatRoomID)
	})
}

func (a *API) CreateChatRoom(ctx context.Context, participants []string) (models.ChatRoom, error) {
	return Mutate(ctx, a.client, MutationCreateChatRoom, func(ctx context.Context) (models.ChatRoom, error) {
		return a.svc.Chat.CreateChatRoom(ctx, participants)
	})
}

// SendMessage may return the stored message together with a
// *services.PartialWriteError.
func (a *API) SendMessage(ctx context.Context, form models.NewMessage) (models.Message, error) {
	return Mutate(ctx, a.client, MutationSendMessage, func(ctx context.Context) (models.Message, error) {
		return a.svc.Chat.SendMessage(ctx, form)
	})
}

// Files

func (a *API) FilePreview(ctx context.Context, fileID string) (string, error) {
	return a.svc.Posts.GetFilePreview(ctx, fileID)
}
