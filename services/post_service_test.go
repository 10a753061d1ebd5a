package services_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"safespace/models"
	"safespace/services"
	"safespace/store"
)

func newPostForm(userID string) models.NewPost {
	return models.NewPost{
		UserID:   userID,
		Caption:  "sunset over the bay",
		Location: "Lisbon",
		Tags:     "sunset, sea,,travel ",
		File:     pngUpload(),
	}
}

func TestCreatePost(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	post, err := f.posts.CreatePost(t.Context(), newPostForm("user-1"))
	require.NoError(t, err)

	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "user-1", post.Creator)
	assert.Equal(t, []string{"sunset", "sea", "travel"}, post.Tags)
	assert.Empty(t, post.Likes)
	assert.True(t, f.files.Exists(post.ImageID))
	assert.True(t, strings.HasPrefix(post.ImageURL, "http://files.test/"+post.ImageID+"/preview?"))
	assert.Contains(t, post.ImageURL, "width=2000")
}

func TestCreatePostValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*models.NewPost)
	}{
		{name: "short caption", mutate: func(p *models.NewPost) { p.Caption = "hey" }},
		{name: "missing location", mutate: func(p *models.NewPost) { p.Location = "" }},
		{name: "missing file", mutate: func(p *models.NewPost) { p.File = nil }},
		{name: "not an image", mutate: func(p *models.NewPost) {
			p.File = &models.Upload{Name: "notes.txt", Body: strings.NewReader("just some text")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			form := newPostForm("user-1")
			tt.mutate(&form)

			_, err := f.posts.CreatePost(t.Context(), form)
			require.ErrorIs(t, err, services.ErrValidation)
			assert.Zero(t, f.files.Len())
		})
	}
}

func TestCreatePostRemovesOrphanedUpload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.docs.set(f.docs.failCreate, models.PostsCollection, store.ErrUnavailable)

	_, err := f.posts.CreatePost(t.Context(), newPostForm("user-1"))
	require.ErrorIs(t, err, services.ErrUnavailable)

	// Verify the uploaded image was cleaned up
	assert.Zero(t, f.files.Len())
}

func TestCreatePostPreviewFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.files.failPreview = store.ErrUnavailable

	_, err := f.posts.CreatePost(t.Context(), newPostForm("user-1"))
	require.ErrorIs(t, err, services.ErrUnavailable)
	assert.Zero(t, f.files.Len())
}

func TestUpdatePostImageReplacement(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	post, err := f.posts.CreatePost(ctx, newPostForm("user-1"))
	require.NoError(t, err)
	oldImage := post.ImageID

	form := models.UpdatePost{
		PostID:   post.ID,
		Caption:  "sunset over the river",
		Location: "Porto",
		Tags:     "river",
		File:     pngUpload(),
	}

	// Failed update keeps the old image and drops the new one
	f.docs.set(f.docs.failUpdate, models.PostsCollection, store.ErrUnavailable)
	_, err = f.posts.UpdatePost(ctx, form)
	require.ErrorIs(t, err, services.ErrUnavailable)
	assert.Equal(t, 1, f.files.Len())
	assert.True(t, f.files.Exists(oldImage))

	// Successful update swaps the images
	f.docs.set(f.docs.failUpdate, models.PostsCollection, nil)
	form.File = pngUpload()
	updated, err := f.posts.UpdatePost(ctx, form)
	require.NoError(t, err)
	assert.NotEqual(t, oldImage, updated.ImageID)
	assert.False(t, f.files.Exists(oldImage))
	assert.True(t, f.files.Exists(updated.ImageID))
	assert.Equal(t, 1, f.files.Len())
	assert.Equal(t, []string{"river"}, updated.Tags)
	assert.Equal(t, "Porto", updated.Location)
}

func TestUpdatePostReplacesOnlyStoredImage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	mine, err := f.posts.CreatePost(ctx, newPostForm("user-1"))
	require.NoError(t, err)
	theirs, err := f.posts.CreatePost(ctx, newPostForm("user-2"))
	require.NoError(t, err)

	updated, err := f.posts.UpdatePost(ctx, models.UpdatePost{
		PostID:   mine.ID,
		Caption:  "a brand new picture",
		Location: "Lisbon",
		File:     pngUpload(),
	})
	require.NoError(t, err)

	assert.False(t, f.files.Exists(mine.ImageID))
	assert.True(t, f.files.Exists(theirs.ImageID))
	assert.True(t, f.files.Exists(updated.ImageID))
	assert.Equal(t, 2, f.files.Len())
}

func TestUpdatePostWithoutFileKeepsImage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	post, err := f.posts.CreatePost(ctx, newPostForm("user-1"))
	require.NoError(t, err)

	updated, err := f.posts.UpdatePost(ctx, models.UpdatePost{
		PostID:   post.ID,
		Caption:  "a better caption",
		Location: "Lisbon",
	})
	require.NoError(t, err)
	assert.Equal(t, post.ImageID, updated.ImageID)
	assert.Equal(t, post.ImageURL, updated.ImageURL)
	assert.Equal(t, []string{}, updated.Tags)
	assert.True(t, f.files.Exists(post.ImageID))
}

func TestDeletePost(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	post, err := f.posts.CreatePost(ctx, newPostForm("user-1"))
	require.NoError(t, err)

	err = f.posts.DeletePost(ctx, post.ID, "")
	require.ErrorIs(t, err, services.ErrValidation)

	// Another post's image is never deleted through this post
	other, err := f.posts.CreatePost(ctx, newPostForm("user-2"))
	require.NoError(t, err)
	err = f.posts.DeletePost(ctx, post.ID, other.ImageID)
	require.ErrorIs(t, err, services.ErrValidation)
	assert.True(t, f.files.Exists(other.ImageID))

	require.NoError(t, f.posts.DeletePost(ctx, post.ID, post.ImageID))
	assert.False(t, f.files.Exists(post.ImageID))

	_, err = f.posts.GetPostByID(ctx, post.ID)
	require.ErrorIs(t, err, services.ErrNotFound)
}

func TestLikePostReplacesSet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	post, err := f.posts.CreatePost(ctx, newPostForm("user-1"))
	require.NoError(t, err)

	liked, err := f.posts.LikePost(ctx, post.ID, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, liked.Likes)

	// A stale client overwrites the other like
	liked, err = f.posts.LikePost(ctx, post.ID, []string{"c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, liked.Likes)

	liked, err = f.posts.LikePost(ctx, post.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, liked.Likes)
}

func TestSavePostRoundTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	save, err := f.posts.SavePost(ctx, "user-1", "post-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", save.User)
	assert.Equal(t, "post-1", save.Post)

	got, err := f.posts.GetSave(ctx, save.ID)
	require.NoError(t, err)
	assert.Equal(t, save.User, got.User)

	require.NoError(t, f.posts.DeleteSavedPost(ctx, save.ID))
	_, err = f.posts.GetSave(ctx, save.ID)
	require.ErrorIs(t, err, services.ErrNotFound)
	require.ErrorIs(t, f.posts.DeleteSavedPost(ctx, save.ID), services.ErrNotFound)
}

// seedPosts writes n posts straight into the store.
func seedPosts(t *testing.T, f *fixture, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := range n {
		doc, err := f.docs.Create(t.Context(), models.PostsCollection, store.UniqueID, map[string]any{
			"creator": fmt.Sprintf("user-%d", i%3),
			"caption": fmt.Sprintf("Post number %d", i),
			"tags":    []string{},
			"likes":   []string{},
		})
		require.NoError(t, err)
		ids = append(ids, doc.ID())
	}
	return ids
}

func TestGetInfinitePostsPaging(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	ids := seedPosts(t, f, 2*services.InfinitePageSize)

	seen := make(map[string]bool)
	var pages []int
	cursor := ""
	for range 5 {
		page, err := f.posts.GetInfinitePosts(ctx, cursor)
		require.NoError(t, err)
		pages = append(pages, len(page.Documents))
		if len(page.Documents) == 0 {
			break
		}
		for _, p := range page.Documents {
			assert.False(t, seen[p.ID], "post %s returned twice", p.ID)
			seen[p.ID] = true
		}
		cursor = page.Documents[len(page.Documents)-1].ID
	}

	// Verify a full walk ends on an empty page
	assert.Equal(t, []int{9, 9, 0}, pages)
	assert.Len(t, seen, len(ids))
}

func TestGetInfinitePostsNewestFirst(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ids := seedPosts(t, f, 3)

	page, err := f.posts.GetInfinitePosts(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, page.Documents, 3)
	assert.Equal(t, ids[2], page.Documents[0].ID)
	assert.Equal(t, 3, page.Total)

	_, err = f.posts.GetInfinitePosts(t.Context(), "missing-cursor")
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestPostListings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	seedPosts(t, f, services.RecentPostsLimit+4)

	recent, err := f.posts.GetRecentPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, recent.Documents, services.RecentPostsLimit)
	assert.Equal(t, services.RecentPostsLimit+4, recent.Total)
	assert.Equal(t, "Post number 23", recent.Documents[0].Caption)

	mine, err := f.posts.GetUserPosts(ctx, "user-0")
	require.NoError(t, err)
	assert.Equal(t, 8, mine.Total)
	for _, p := range mine.Documents {
		assert.Equal(t, "user-0", p.Creator)
	}

	found, err := f.posts.SearchPosts(ctx, "NUMBER 1")
	require.NoError(t, err)
	// 1 and 10 through 19
	assert.Equal(t, 11, found.Total)

	_, err = f.posts.SearchPosts(ctx, "")
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestReadsRetryTransientFailures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.docs.set(f.docs.failList, models.PostsCollection, store.ErrUnavailable)

	_, err := f.posts.GetRecentPosts(t.Context())
	require.ErrorIs(t, err, services.ErrUnavailable)
	assert.Equal(t, 1, f.docs.listCalls[models.PostsCollection])
}

func TestCreatePostModeration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		status   int
		wantErr  error
		findings int
	}{
		{
			name:   "clean image",
			body:   `{"porn_moderation":{"porn_content":false},"drug_moderation":{"drug_content":false},"gore_moderation":{"gore_content":false}}`,
			status: http.StatusOK,
		},
		{
			name:     "flagged image",
			body:     `{"porn_moderation":{"porn_content":true},"drug_moderation":{"drug_content":false},"gore_moderation":{"gore_content":true}}`,
			status:   http.StatusOK,
			wantErr:  services.ErrValidation,
			findings: 2,
		},
		{
			name:    "classifier down",
			body:    `{"error":"overloaded"}`,
			status:  http.StatusServiceUnavailable,
			wantErr: services.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				file, _, err := r.FormFile("file")
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				file.Close()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			moderation := services.NewModerationService(srv.URL, 5*time.Second, zaptest.NewLogger(t))
			f := newFixtureWithModeration(t, moderation)

			post, err := f.posts.CreatePost(t.Context(), newPostForm("user-1"))
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.True(t, f.files.Exists(post.ImageID))
				return
			}

			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.files.Len())

			var modErr *services.ModerationError
			if tt.findings > 0 {
				require.ErrorAs(t, err, &modErr)
				assert.Len(t, modErr.Findings, tt.findings)
				assert.Equal(t, "porn", modErr.Findings[0].Type)
			} else {
				assert.False(t, errors.As(err, &modErr))
			}
		})
	}
}

func TestModerationDisabled(t *testing.T) {
	t.Parallel()
	moderation := services.NewModerationService("", time.Second, zaptest.NewLogger(t))
	assert.False(t, moderation.Enabled())
	require.NoError(t, moderation.Check(t.Context(), "x.png", pngBytes))

	var nilService *services.ModerationService
	assert.False(t, nilService.Enabled())
}
