package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"safespace/models"
	"safespace/store"
	"safespace/utils"
)

// AuthService handles accounts, sessions and the user document created at
// sign-up.
type AuthService struct {
	reader
	accounts store.Accounts
	avatars  store.Avatars
	logger   *zap.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(accounts store.Accounts, avatars store.Avatars, docs store.Documents, retry utils.RetryOptions, logger *zap.Logger) *AuthService {
	return &AuthService{
		reader:   reader{docs: docs, retry: retry},
		accounts: accounts,
		avatars:  avatars,
		logger:   logger.Named("auth"),
	}
}

// CreateUserAccount registers an account, generates an initials avatar and
// saves the user document, in that order.
func (s *AuthService) CreateUserAccount(ctx context.Context, form models.NewUser) (models.User, error) {
	if err := validateForm(form); err != nil {
		return models.User{}, err
	}

	account, err := s.accounts.Create(ctx, store.UniqueID, form.Email, form.Password, form.Name)
	if err != nil {
		s.logger.Warn("Failed to create account", zap.Error(err))
		return models.User{}, classify(err)
	}

	avatarURL := s.avatars.Initials(account.Name)

	user, err := s.SaveUserToDB(ctx, models.User{
		AccountID: account.ID,
		Name:      account.Name,
		Email:     account.Email,
		Username:  form.Username,
		ImageURL:  avatarURL,
	})
	if err != nil {
		s.logger.Error("Account created without user document",
			zap.String("accountID", account.ID),
			zap.Error(err))
		return models.User{}, err
	}

	s.logger.Info("User signed up", zap.String("userID", user.ID))
	return user, nil
}

// SaveUserToDB writes the user document for an account.
func (s *AuthService) SaveUserToDB(ctx context.Context, user models.User) (models.User, error) {
	if err := requireIDs(map[string]string{"accountId": user.AccountID}); err != nil {
		return models.User{}, err
	}

	doc, err := s.docs.Create(ctx, models.UsersCollection, store.UniqueID, map[string]any{
		"accountId": user.AccountID,
		"email":     user.Email,
		"name":      user.Name,
		"imageUrl":  user.ImageURL,
		"username":  user.Username,
	})
	if err != nil {
		return models.User{}, classify(err)
	}
	return decodeDocument[models.User](doc)
}

// SignInAccount opens a session. The session id is the bearer token.
func (s *AuthService) SignInAccount(ctx context.Context, form models.SignIn) (models.Session, error) {
	if err := validateForm(form); err != nil {
		return models.Session{}, err
	}

	session, err := s.accounts.CreateSession(ctx, form.Email, form.Password)
	if err != nil {
		return models.Session{}, classify(err)
	}
	return session, nil
}

// GetAccount returns the account behind a session.
func (s *AuthService) GetAccount(ctx context.Context, sessionID string) (models.Account, error) {
	account, err := s.accounts.Get(ctx, sessionID)
	if err != nil {
		return models.Account{}, classify(err)
	}
	return account, nil
}

// GetCurrentUser returns the user document owned by the session's account.
func (s *AuthService) GetCurrentUser(ctx context.Context, sessionID string) (models.User, error) {
	account, err := s.GetAccount(ctx, sessionID)
	if err != nil {
		return models.User{}, err
	}

	users, err := listDocuments[models.User](ctx, s.reader, models.UsersCollection,
		store.Equal("accountId", account.ID),
		store.Limit(1),
	)
	if err != nil {
		return models.User{}, err
	}
	if len(users.Documents) == 0 {
		return models.User{}, fmt.Errorf("%w: no user for account %s", ErrNotFound, account.ID)
	}
	return users.Documents[0], nil
}

// SignOutAccount ends the session.
func (s *AuthService) SignOutAccount(ctx context.Context, sessionID string) error {
	if err := s.accounts.DeleteSession(ctx, sessionID); err != nil {
		return classify(err)
	}
	return nil
}
