package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"safespace/models"
	"safespace/store"
	"safespace/utils"
)

const (
	// InfinitePageSize is the page size of the explore feed.
	InfinitePageSize = 9
	// RecentPostsLimit is the size of the home feed.
	RecentPostsLimit = 20
)

// previewSize is the rendition stored on posts and profiles.
var previewSize = store.Preview{Width: 2000, Height: 2000, Gravity: "top", Quality: 100}

// PostService covers posts, their images and bookmarks.
type PostService struct {
	reader
	*imageStore
	logger *zap.Logger
}

// NewPostService creates a PostService. moderation may be nil.
func NewPostService(docs store.Documents, files store.Files, moderation *ModerationService, retry utils.RetryOptions, logger *zap.Logger) *PostService {
	logger = logger.Named("posts")
	return &PostService{
		reader:     reader{docs: docs, retry: retry},
		imageStore: &imageStore{files: files, moderation: moderation, logger: logger},
		logger:     logger,
	}
}

// CreatePost uploads the image and creates the post. The upload is removed
// again if the post cannot be written.
func (s *PostService) CreatePost(ctx context.Context, form models.NewPost) (models.Post, error) {
	if err := validateForm(form); err != nil {
		return models.Post{}, err
	}

	fileID, url, err := s.storeImage(ctx, form.File)
	if err != nil {
		return models.Post{}, err
	}

	doc, err := s.docs.Create(ctx, models.PostsCollection, store.UniqueID, map[string]any{
		"creator":  form.UserID,
		"caption":  form.Caption,
		"imageUrl": url,
		"imageId":  fileID,
		"location": form.Location,
		"tags":     utils.SplitTags(form.Tags),
		"likes":    []string{},
	})
	if err != nil {
		s.logger.Error("Failed to create post", zap.String("creator", form.UserID), zap.Error(err))
		s.deleteOrphan(ctx, fileID)
		return models.Post{}, classify(err)
	}

	return decodeDocument[models.Post](doc)
}

// UpdatePost edits a post. Without a file the stored image is kept. With
// one, the stored image is deleted only after the post update succeeded; if
// the update fails the new image is deleted instead.
func (s *PostService) UpdatePost(ctx context.Context, form models.UpdatePost) (models.Post, error) {
	if err := validateForm(form); err != nil {
		return models.Post{}, err
	}

	current, err := s.GetPostByID(ctx, form.PostID)
	if err != nil {
		return models.Post{}, err
	}

	fields := map[string]any{
		"caption":  form.Caption,
		"location": form.Location,
		"tags":     utils.SplitTags(form.Tags),
	}

	var newImageID string
	if form.File != nil {
		fileID, url, err := s.storeImage(ctx, form.File)
		if err != nil {
			return models.Post{}, err
		}
		newImageID = fileID
		fields["imageId"], fields["imageUrl"] = fileID, url
	}

	doc, err := s.docs.Update(ctx, models.PostsCollection, form.PostID, fields)
	if err != nil {
		s.logger.Error("Failed to update post", zap.String("postID", form.PostID), zap.Error(err))
		if newImageID != "" {
			s.deleteOrphan(ctx, newImageID)
		}
		return models.Post{}, classify(err)
	}

	if newImageID != "" && current.ImageID != "" {
		s.deleteOrphan(ctx, current.ImageID)
	}

	return decodeDocument[models.Post](doc)
}

// DeletePost removes the post, then its stored image. imageID must be the
// post's own image.
func (s *PostService) DeletePost(ctx context.Context, postID, imageID string) error {
	if err := requireIDs(map[string]string{"postId": postID, "imageId": imageID}); err != nil {
		return err
	}

	post, err := s.GetPostByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.ImageID != imageID {
		return fmt.Errorf("%w: image %s does not belong to post %s", ErrValidation, imageID, postID)
	}

	if err := s.docs.Delete(ctx, models.PostsCollection, postID); err != nil {
		return classify(err)
	}
	s.deleteOrphan(ctx, post.ImageID)
	return nil
}

// LikePost replaces the post's like set with likes. Concurrent callers
// overwrite each other; the last write wins.
func (s *PostService) LikePost(ctx context.Context, postID string, likes []string) (models.Post, error) {
	if err := requireIDs(map[string]string{"postId": postID}); err != nil {
		return models.Post{}, err
	}
	if likes == nil {
		likes = []string{}
	}

	doc, err := s.docs.Update(ctx, models.PostsCollection, postID, map[string]any{"likes": likes})
	if err != nil {
		return models.Post{}, classify(err)
	}
	return decodeDocument[models.Post](doc)
}

// SavePost bookmarks a post for a user.
func (s *PostService) SavePost(ctx context.Context, userID, postID string) (models.Save, error) {
	if err := requireIDs(map[string]string{"userId": userID, "postId": postID}); err != nil {
		return models.Save{}, err
	}

	doc, err := s.docs.Create(ctx, models.SavesCollection, store.UniqueID, map[string]any{
		"user": userID,
		"post": postID,
	})
	if err != nil {
		return models.Save{}, classify(err)
	}
	return decodeDocument[models.Save](doc)
}

// GetSave returns one bookmark.
func (s *PostService) GetSave(ctx context.Context, saveID string) (models.Save, error) {
	if err := requireIDs(map[string]string{"saveId": saveID}); err != nil {
		return models.Save{}, err
	}
	return getDocument[models.Save](ctx, s.reader, models.SavesCollection, saveID)
}

// DeleteSavedPost removes a bookmark.
func (s *PostService) DeleteSavedPost(ctx context.Context, saveID string) error {
	if err := requireIDs(map[string]string{"saveId": saveID}); err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, models.SavesCollection, saveID); err != nil {
		return classify(err)
	}
	return nil
}

// GetPostByID returns one post.
func (s *PostService) GetPostByID(ctx context.Context, postID string) (models.Post, error) {
	if err := requireIDs(map[string]string{"postId": postID}); err != nil {
		return models.Post{}, err
	}
	return getDocument[models.Post](ctx, s.reader, models.PostsCollection, postID)
}

// GetUserPosts lists a user's posts, newest first.
func (s *PostService) GetUserPosts(ctx context.Context, userID string) (models.DocumentList[models.Post], error) {
	if err := requireIDs(map[string]string{"userId": userID}); err != nil {
		return models.DocumentList[models.Post]{}, err
	}
	return listDocuments[models.Post](ctx, s.reader, models.PostsCollection,
		store.Equal("creator", userID),
		store.OrderDesc(store.FieldCreatedAt),
	)
}

// GetRecentPosts lists the newest posts for the home feed.
func (s *PostService) GetRecentPosts(ctx context.Context) (models.DocumentList[models.Post], error) {
	return listDocuments[models.Post](ctx, s.reader, models.PostsCollection,
		store.OrderDesc(store.FieldCreatedAt),
		store.Limit(RecentPostsLimit),
	)
}

// GetInfinitePosts returns one explore page. cursor is the id of the last
// post of the previous page, empty for the first page.
func (s *PostService) GetInfinitePosts(ctx context.Context, cursor string) (models.DocumentList[models.Post], error) {
	queries := []store.Query{store.OrderDesc(store.FieldUpdatedAt), store.Limit(InfinitePageSize)}
	if cursor != "" {
		queries = append(queries, store.CursorAfter(cursor))
	}
	return listDocuments[models.Post](ctx, s.reader, models.PostsCollection, queries...)
}

// SearchPosts matches captions containing term.
func (s *PostService) SearchPosts(ctx context.Context, term string) (models.DocumentList[models.Post], error) {
	if term == "" {
		return models.DocumentList[models.Post]{}, fmt.Errorf("%w: empty search term", ErrValidation)
	}
	return listDocuments[models.Post](ctx, s.reader, models.PostsCollection, store.Search("caption", term))
}
