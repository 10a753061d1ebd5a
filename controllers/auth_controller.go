package controllers

import (
	"net/http"

	"go.uber.org/zap"

	"safespace/helpers"
	"safespace/models"
	"safespace/query"
	"safespace/services"
)

// AuthController handles sign-up, sign-in and sessions.
type AuthController struct {
	api    *query.API
	logger *zap.Logger
}

// NewAuthController initializes the auth controller
func NewAuthController(api *query.API, logger *zap.Logger) *AuthController {
	return &AuthController{api: api, logger: logger.Named("auth_controller")}
}

// SignUp creates an account and its user profile.
func (c *AuthController) SignUp(w http.ResponseWriter, r *http.Request) {
	var form models.NewUser
	if err := helpers.DecodeJSON(r, &form); err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	user, err := c.api.SignUp(r.Context(), form)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusCreated, user)
}

// SignIn opens a session. The session id is the bearer token.
func (c *AuthController) SignIn(w http.ResponseWriter, r *http.Request) {
	var form models.SignIn
	if err := helpers.DecodeJSON(r, &form); err != nil {
		writeServiceError(w, c.logger, err)
		return
	}

	session, err := c.api.SignIn(r.Context(), form)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]any{
		"token":   session.ID,
		"session": session,
	})
}

func (c *AuthController) SignOut(w http.ResponseWriter, r *http.Request) {
	token := helpers.BearerToken(r)
	if token == "" {
		writeServiceError(w, c.logger, services.ErrUnauthorized)
		return
	}
	if err := c.api.SignOut(r.Context(), token); err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Signed out"})
}

// Me returns the signed-in user.
func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, c.api)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, user)
}
