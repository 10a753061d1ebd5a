package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safespace/models"
	"safespace/services"
	"safespace/store"
)

func TestUpdateUserPicture(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	user := f.createUser(t, "alice")

	// First upload replaces a generated avatar, nothing to delete
	updated, err := f.users.UpdateUser(ctx, models.UpdateUser{
		UserID: user.ID,
		Name:   "Alice",
		Bio:    "hi there",
		File:   pngUpload(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, updated.ImageID)
	assert.Equal(t, "hi there", updated.Bio)
	assert.Equal(t, 1, f.files.Len())

	second, err := f.users.UpdateUser(ctx, models.UpdateUser{
		UserID: user.ID,
		Name:   "Alice",
		File:   pngUpload(),
	})
	require.NoError(t, err)
	assert.False(t, f.files.Exists(updated.ImageID))
	assert.True(t, f.files.Exists(second.ImageID))
	assert.Equal(t, 1, f.files.Len())
}

func TestUpdateUserFailureDropsNewPicture(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	user := f.createUser(t, "alice")
	f.docs.set(f.docs.failUpdate, models.UsersCollection, store.ErrUnavailable)

	_, err := f.users.UpdateUser(t.Context(), models.UpdateUser{
		UserID: user.ID,
		Name:   "Alice",
		File:   pngUpload(),
	})
	require.ErrorIs(t, err, services.ErrUnavailable)
	assert.Zero(t, f.files.Len())
}

func TestUpdateUserMissing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.users.UpdateUser(t.Context(), models.UpdateUser{UserID: "ghost", Name: "Ghost"})
	require.ErrorIs(t, err, services.ErrNotFound)

	_, err = f.users.UpdateUser(t.Context(), models.UpdateUser{Name: "Ghost"})
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestGetUsers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	for _, name := range []string{"a1", "b2", "c3"} {
		f.createUser(t, name)
	}

	users, err := f.users.GetUsers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, users.Documents, 2)
	assert.Equal(t, 3, users.Total)
	assert.Equal(t, "c3", users.Documents[0].Name)

	all, err := f.users.GetUsers(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all.Documents, 3)

	got, err := f.users.GetUserDetails(ctx, users.Documents[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "b2", got.Name)

	_, err = f.users.GetUserByID(ctx, "")
	require.ErrorIs(t, err, services.ErrValidation)
}
