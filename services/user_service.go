package services

import (
	"context"

	"go.uber.org/zap"

	"safespace/models"
	"safespace/store"
	"safespace/utils"
)

// UserService reads and edits user profiles.
type UserService struct {
	reader
	*imageStore
	logger *zap.Logger
}

// NewUserService creates a UserService. moderation may be nil.
func NewUserService(docs store.Documents, files store.Files, moderation *ModerationService, retry utils.RetryOptions, logger *zap.Logger) *UserService {
	logger = logger.Named("users")
	return &UserService{
		reader:     reader{docs: docs, retry: retry},
		imageStore: &imageStore{files: files, moderation: moderation, logger: logger},
		logger:     logger,
	}
}

// GetUsers lists the newest users. A limit of zero uses the store default.
func (s *UserService) GetUsers(ctx context.Context, limit int) (models.DocumentList[models.User], error) {
	queries := []store.Query{store.OrderDesc(store.FieldCreatedAt)}
	if limit > 0 {
		queries = append(queries, store.Limit(limit))
	}
	return listDocuments[models.User](ctx, s.reader, models.UsersCollection, queries...)
}

// GetUserByID returns a profile.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	if err := requireIDs(map[string]string{"userId": userID}); err != nil {
		return models.User{}, err
	}
	return getDocument[models.User](ctx, s.reader, models.UsersCollection, userID)
}

// GetUserDetails returns the profile shown in chat headers.
func (s *UserService) GetUserDetails(ctx context.Context, userID string) (models.User, error) {
	return s.GetUserByID(ctx, userID)
}

// UpdateUser edits a profile. A new picture replaces the stored one only
// after the profile write succeeded.
func (s *UserService) UpdateUser(ctx context.Context, form models.UpdateUser) (models.User, error) {
	if err := validateForm(form); err != nil {
		return models.User{}, err
	}

	current, err := s.GetUserByID(ctx, form.UserID)
	if err != nil {
		return models.User{}, err
	}

	fields := map[string]any{
		"name": form.Name,
		"bio":  form.Bio,
	}

	var newImageID string
	if form.File != nil {
		fileID, url, err := s.storeImage(ctx, form.File)
		if err != nil {
			return models.User{}, err
		}
		newImageID = fileID
		fields["imageId"], fields["imageUrl"] = fileID, url
	}

	doc, err := s.docs.Update(ctx, models.UsersCollection, form.UserID, fields)
	if err != nil {
		s.logger.Error("Failed to update user", zap.String("userID", form.UserID), zap.Error(err))
		if newImageID != "" {
			s.deleteOrphan(ctx, newImageID)
		}
		return models.User{}, classify(err)
	}

	// Generated avatars have no file id, so there is nothing to delete.
	if newImageID != "" && current.ImageID != "" {
		s.deleteOrphan(ctx, current.ImageID)
	}

	return decodeDocument[models.User](doc)
}
