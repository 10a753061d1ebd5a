package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"safespace/models"
	"safespace/store"
	"safespace/utils"
)

// FollowService manages follow edges and the views derived from them. No
// derived value is stored; every call recomputes from the edges.
type FollowService struct {
	reader
	maxLookups int
	logger     *zap.Logger
}

// NewFollowService creates a FollowService. maxLookups bounds concurrent
// profile lookups; zero means unbounded.
func NewFollowService(docs store.Documents, retry utils.RetryOptions, maxLookups int, logger *zap.Logger) *FollowService {
	return &FollowService{
		reader:     reader{docs: docs, retry: retry},
		maxLookups: maxLookups,
		logger:     logger.Named("follow"),
	}
}

// FollowID is the id of the edge followerID -> followingID. A pair has at
// most one edge, so a second follow conflicts.
func FollowID(followerID, followingID string) string {
	return followerID + ":" + followingID
}

// FollowUser creates the edge followerID -> followingID. Following someone
// twice returns ErrConflict.
func (s *FollowService) FollowUser(ctx context.Context, followerID, followingID string) (models.Follow, error) {
	if err := requireIDs(map[string]string{"followerId": followerID, "followingId": followingID}); err != nil {
		return models.Follow{}, err
	}
	if followerID == followingID {
		return models.Follow{}, fmt.Errorf("%w: cannot follow yourself", ErrValidation)
	}

	doc, err := s.docs.Create(ctx, models.FollowersCollection, FollowID(followerID, followingID), map[string]any{
		"followerId":  followerID,
		"followingId": followingID,
	})
	if errors.Is(err, store.ErrConflict) {
		return models.Follow{}, fmt.Errorf("%w: %s already follows %s", ErrConflict, followerID, followingID)
	}
	if err != nil {
		s.logger.Error("Failed to follow user",
			zap.String("followerID", followerID),
			zap.String("followingID", followingID),
			zap.Error(err))
		return models.Follow{}, classify(err)
	}
	return decodeDocument[models.Follow](doc)
}

// GetFollow returns one edge.
func (s *FollowService) GetFollow(ctx context.Context, followID string) (models.Follow, error) {
	if err := requireIDs(map[string]string{"followId": followID}); err != nil {
		return models.Follow{}, err
	}
	return getDocument[models.Follow](ctx, s.reader, models.FollowersCollection, followID)
}

// UnfollowUser deletes an edge by id.
func (s *FollowService) UnfollowUser(ctx context.Context, followID string) error {
	if err := requireIDs(map[string]string{"followId": followID}); err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, models.FollowersCollection, followID); err != nil {
		return classify(err)
	}
	return nil
}

// GetUserFollowStats counts edges in both directions. Counts come from the
// store's totals, so they do not depend on how many edges are fetched. Any
// failure fails the call.
func (s *FollowService) GetUserFollowStats(ctx context.Context, userID string) (models.FollowStats, error) {
	if err := requireIDs(map[string]string{"userId": userID}); err != nil {
		return models.FollowStats{}, err
	}

	var followers, following int
	err := gather(ctx, 2, 2, func(ctx context.Context, i int) error {
		field, out := "followingId", &followers
		if i == 1 {
			field, out = "followerId", &following
		}
		list, err := listDocuments[models.Follow](ctx, s.reader, models.FollowersCollection,
			store.Equal(field, userID),
			store.Limit(1),
		)
		if err != nil {
			return err
		}
		*out = list.Total
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to count follow edges", zap.String("userID", userID), zap.Error(err))
		return models.FollowStats{}, err
	}

	return models.FollowStats{Followers: followers, Following: following}, nil
}

// CheckIsFollowing reports whether currentUserID follows userID. A failed
// lookup is not an error: it yields FollowStateUnknown, which reads as not
// following.
func (s *FollowService) CheckIsFollowing(ctx context.Context, userID, currentUserID string) (models.FollowStatus, error) {
	if err := requireIDs(map[string]string{"userId": userID, "currentUserId": currentUserID}); err != nil {
		return models.FollowStatus{}, err
	}

	list, err := listDocuments[models.Follow](ctx, s.reader, models.FollowersCollection,
		store.Equal("followerId", currentUserID),
		store.Equal("followingId", userID),
		store.Limit(1),
	)
	if err != nil {
		s.logger.Warn("Follow lookup failed, reporting not following",
			zap.String("userID", userID),
			zap.String("currentUserID", currentUserID),
			zap.Error(err))
		return models.FollowStatus{IsFollowing: false, State: models.FollowStateUnknown}, nil
	}

	if len(list.Documents) == 0 {
		return models.FollowStatus{IsFollowing: false, State: models.FollowStateKnown}, nil
	}
	return models.FollowStatus{
		IsFollowing: true,
		FollowID:    list.Documents[0].ID,
		State:       models.FollowStateKnown,
	}, nil
}

// GetFollowers lists every edge targeting userID and joins each with the
// follower's current profile. Edges are not deduplicated. One failed
// lookup fails the whole list.
func (s *FollowService) GetFollowers(ctx context.Context, userID string) (models.DocumentList[models.FollowerView], error) {
	if err := requireIDs(map[string]string{"userId": userID}); err != nil {
		return models.DocumentList[models.FollowerView]{}, err
	}

	edges, err := listAll[models.Follow](ctx, s.reader, models.FollowersCollection, store.Equal("followingId", userID))
	if err != nil {
		return models.DocumentList[models.FollowerView]{}, err
	}

	views := make([]models.FollowerView, len(edges.Documents))
	err = gather(ctx, s.maxLookups, len(edges.Documents), func(ctx context.Context, i int) error {
		edge := edges.Documents[i]
		follower, err := getDocument[models.User](ctx, s.reader, models.UsersCollection, edge.FollowerID)
		if err != nil {
			return fmt.Errorf("follower %s: %w", edge.FollowerID, err)
		}
		views[i] = models.FollowerView{
			Follow:   edge,
			UserID:   follower.ID,
			Username: follower.Username,
			ImageURL: follower.ImageURL,
			Name:     follower.Name,
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to resolve followers", zap.String("userID", userID), zap.Error(err))
		return models.DocumentList[models.FollowerView]{}, err
	}

	return models.DocumentList[models.FollowerView]{Documents: views, Total: edges.Total}, nil
}
