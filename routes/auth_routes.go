package routes

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"safespace/controllers"
	"safespace/query"
)

// RegisterAuthRoutes sets up routes for accounts and sessions under /api/auth
func RegisterAuthRoutes(api *mux.Router, q *query.API, logger *zap.Logger) {
	controller := controllers.NewAuthController(q, logger)

	authRouter := api.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/sign-up", controller.SignUp).Methods("POST")
	authRouter.HandleFunc("/sign-in", controller.SignIn).Methods("POST")
	authRouter.HandleFunc("/sign-out", controller.SignOut).Methods("POST")
	authRouter.HandleFunc("/me", controller.Me).Methods("GET")
}
