package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"safespace/helpers"
	"safespace/models"
	"safespace/query"
	"safespace/services"
)

const defaultUsersLimit = 10

// UserController serves profiles and the follow graph.
type UserController struct {
	api    *query.API
	logger *zap.Logger
}

// NewUserController initializes the user controller
func NewUserController(api *query.API, logger *zap.Logger) *UserController {
	return &UserController{api: api, logger: logger.Named("user_controller")}
}

// ListUsers returns the newest users without the viewer. ?limit defaults
// to 10.
func (c *UserController) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := defaultUsersLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeServiceError(w, c.logger, fmt.Errorf("%w: limit must be a positive number", services.ErrValidation))
			return
		}
		limit = n
	}

	viewer, err := viewerID(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	users, err := c.api.Users(r.Context(), viewer, limit)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, users)
}

func (c *UserController) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := c.api.UserDetails(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, user)
}

// UpdateUser edits the signed-in user's own profile from a multipart form.
func (c *UserController) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	if userID := mux.Vars(r)["userId"]; userID != user.ID {
		writeServiceError(w, c.logger, fmt.Errorf("%w: cannot edit user %s", services.ErrUnauthorized, userID))
		return
	}

	var form profileForm
	upload, cleanup, err := decodeForm(r, &form)
	defer cleanup()
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	updated, err := c.api.UpdateUser(r.Context(), models.UpdateUser{
		UserID: user.ID,
		Name:   form.Name,
		Bio:    form.Bio,
		File:   upload,
	})
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, updated)
}

func (c *UserController) UserPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := c.api.UserPosts(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, posts)
}

func (c *UserController) FollowStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.api.FollowStats(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, stats)
}

func (c *UserController) Followers(w http.ResponseWriter, r *http.Request) {
	followers, err := c.api.Followers(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, followers)
}

// IsFollowing tells whether the signed-in user follows the routed user.
func (c *UserController) IsFollowing(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	status, err := c.api.IsFollowing(r.Context(), mux.Vars(r)["userId"], user.ID)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, status)
}

// Follow makes the signed-in user follow the routed user.
func (c *UserController) Follow(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	follow, err := c.api.FollowUser(r.Context(), user.ID, mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusCreated, follow)
}

// Unfollow deletes an edge created by the signed-in user.
func (c *UserController) Unfollow(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	followID := mux.Vars(r)["followId"]
	follow, err := c.api.Follow(r.Context(), followID)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	if follow.FollowerID != user.ID {
		writeServiceError(w, c.logger, fmt.Errorf("%w: follow %s belongs to another user", services.ErrUnauthorized, followID))
		return
	}

	if err := c.api.UnfollowUser(r.Context(), followID); err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Unfollowed", "followId": followID})
}
