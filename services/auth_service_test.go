package services_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safespace/models"
	"safespace/services"
)

func signUpForm() models.NewUser {
	return models.NewUser{
		Name:     "Jane Doe",
		Username: "jane",
		Email:    "Jane@Example.com",
		Password: "correct horse",
	}
}

func TestSignUpSignInFlow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	user, err := f.auth.CreateUserAccount(ctx, signUpForm())
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, "jane", user.Username)
	assert.True(t, strings.HasPrefix(user.ImageURL, "http://avatars.test/initials?name="))
	assert.NotEmpty(t, user.AccountID)

	session, err := f.auth.SignInAccount(ctx, models.SignIn{Email: "jane@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)

	account, err := f.auth.GetAccount(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.AccountID, account.ID)
	assert.Empty(t, account.PasswordHash)

	current, err := f.auth.GetCurrentUser(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, current.ID)

	require.NoError(t, f.auth.SignOutAccount(ctx, session.ID))

	_, err = f.auth.GetCurrentUser(ctx, session.ID)
	require.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.auth.CreateUserAccount(t.Context(), signUpForm())
	require.NoError(t, err)

	form := signUpForm()
	form.Email = "JANE@example.com"
	_, err = f.auth.CreateUserAccount(t.Context(), form)
	require.ErrorIs(t, err, services.ErrConflict)
}

func TestSignUpValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	form := signUpForm()
	form.Password = "short"
	_, err := f.auth.CreateUserAccount(t.Context(), form)
	require.ErrorIs(t, err, services.ErrValidation)

	form = signUpForm()
	form.Email = "not-an-email"
	_, err = f.auth.CreateUserAccount(t.Context(), form)
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestSignInWrongPassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.auth.CreateUserAccount(t.Context(), signUpForm())
	require.NoError(t, err)

	_, err = f.auth.SignInAccount(t.Context(), models.SignIn{Email: "jane@example.com", Password: "wrong password"})
	require.ErrorIs(t, err, services.ErrUnauthorized)

	_, err = f.auth.SignInAccount(t.Context(), models.SignIn{Email: "nobody@example.com", Password: "correct horse"})
	require.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestGetCurrentUserWithoutSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.auth.GetCurrentUser(t.Context(), "")
	require.ErrorIs(t, err, services.ErrUnauthorized)

	require.ErrorIs(t, f.auth.SignOutAccount(t.Context(), "unknown"), services.ErrUnauthorized)
}
