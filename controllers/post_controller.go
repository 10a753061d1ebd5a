package controllers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"safespace/helpers"
	"safespace/models"
	"safespace/query"
	"safespace/services"
)

// PostController serves feeds, post editing, likes and saves.
type PostController struct {
	api    *query.API
	logger *zap.Logger
}

// NewPostController initializes the post controller
func NewPostController(api *query.API, logger *zap.Logger) *PostController {
	return &PostController{api: api, logger: logger.Named("post_controller")}
}

// ListPosts returns one explore page without the viewer's own posts.
func (c *PostController) ListPosts(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerID(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	page, err := c.api.InfinitePostsPage(r.Context(), viewer, r.URL.Query().Get("cursor"))
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, page)
}

// RecentPosts is the home feed without the viewer's own posts.
func (c *PostController) RecentPosts(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerID(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	posts, err := c.api.RecentPosts(r.Context(), viewer)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, posts)
}

func (c *PostController) SearchPosts(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerID(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	posts, err := c.api.SearchPosts(r.Context(), r.URL.Query().Get("q"), viewer)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, posts)
}

func (c *PostController) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := c.api.PostByID(r.Context(), mux.Vars(r)["postId"])
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, post)
}

// CreatePost takes a multipart form with the image under "file".
func (c *PostController) CreatePost(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	var form postForm
	upload, cleanup, err := decodeForm(r, &form)
	defer cleanup()
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	post, err := c.api.CreatePost(r.Context(), models.NewPost{
		UserID:   user.ID,
		Caption:  form.Caption,
		Location: form.Location,
		Tags:     form.Tags,
		File:     upload,
	})
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusCreated, post)
}

// UpdatePost edits a post owned by the signed-in user. Without a new file
// the current image is kept. Image ids in the form are ignored.
func (c *PostController) UpdatePost(w http.ResponseWriter, r *http.Request) {
	post, ok := c.ownedPost(w, r)
	if !ok {
		return
	}

	var form postForm
	upload, cleanup, err := decodeForm(r, &form)
	defer cleanup()
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	updated, err := c.api.UpdatePost(r.Context(), models.UpdatePost{
		PostID:   post.ID,
		Caption:  form.Caption,
		Location: form.Location,
		Tags:     form.Tags,
		File:     upload,
	})
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, updated)
}

func (c *PostController) DeletePost(w http.ResponseWriter, r *http.Request) {
	post, ok := c.ownedPost(w, r)
	if !ok {
		return
	}

	if err := c.api.DeletePost(r.Context(), post.ID, post.ImageID); err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Post deleted", "postId": post.ID})
}

// LikePost replaces the like set with the one in the body.
func (c *PostController) LikePost(w http.ResponseWriter, r *http.Request) {
	if _, err := currentUser(r, c.api); err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	var body struct {
		Likes []string `json:"likes"`
	}
	if err := helpers.DecodeJSON(r, &body); err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	if body.Likes == nil {
		body.Likes = []string{}
	}

	post, err := c.api.LikePost(r.Context(), mux.Vars(r)["postId"], body.Likes)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, post)
}

func (c *PostController) SavePost(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	save, err := c.api.SavePost(r.Context(), user.ID, mux.Vars(r)["postId"])
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusCreated, save)
}

// DeleteSavedPost removes a bookmark of the signed-in user.
func (c *PostController) DeleteSavedPost(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	saveID := mux.Vars(r)["saveId"]
	save, err := c.api.Save(r.Context(), saveID)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	if save.User != user.ID {
		writeServiceError(w, c.logger, fmt.Errorf("%w: save %s belongs to another user", services.ErrUnauthorized, saveID))
		return
	}

	if err := c.api.DeleteSavedPost(r.Context(), saveID); err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Save deleted", "saveId": saveID})
}

// ownedPost loads the routed post and checks that the signed-in user
// created it. On failure the response is already written.
func (c *PostController) ownedPost(w http.ResponseWriter, r *http.Request) (models.Post, bool) {
	user, err := currentUser(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return models.Post{}, false
	}

	post, err := c.api.PostByID(r.Context(), mux.Vars(r)["postId"])
	if err != nil {
		writeServiceError(w, c.logger, err)
		return models.Post{}, false
	}
	if post.Creator != user.ID {
		writeServiceError(w, c.logger, fmt.Errorf("%w: post %s belongs to another user", services.ErrUnauthorized, post.ID))
		return models.Post{}, false
	}
	return post, true
}
