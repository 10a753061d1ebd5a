package controllers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"safespace/helpers"
	"safespace/models"
	"safespace/query"
	"safespace/services"
)

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Server is running!"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Welcome to the server! This is the Safespace API."})
}

// writeServiceError maps a service error kind onto a status code. Bodies
// stay generic; validation messages are passed through since they only
// describe the caller's input.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, helpers.ErrBadBody):
		helpers.WriteError(w, http.StatusBadRequest, "invalid request body")
	case errors.Is(err, services.ErrValidation):
		helpers.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		helpers.WriteError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrNotFound):
		helpers.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrConflict):
		helpers.WriteError(w, http.StatusConflict, "already exists")
	default:
		logger.Error("Request failed", zap.Error(err))
		helpers.WriteError(w, http.StatusInternalServerError, "something went wrong")
	}
}

// currentUser resolves the bearer session to its user.
func currentUser(r *http.Request, api *query.API) (models.User, error) {
	token := helpers.BearerToken(r)
	if token == "" {
		return models.User{}, services.ErrUnauthorized
	}
	return api.CurrentUser(r.Context(), token)
}

// viewerID is the signed-in user's id, or "" for anonymous requests.
func viewerID(r *http.Request, api *query.API) (string, error) {
	if helpers.BearerToken(r) == "" {
		return "", nil
	}
	user, err := currentUser(r, api)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}
