package routes

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"safespace/controllers"
	"safespace/query"
)

// RegisterUserRoutes sets up profile and follow routes under /api
func RegisterUserRoutes(api *mux.Router, q *query.API, logger *zap.Logger) {
	controller := controllers.NewUserController(q, logger)

	userRouter := api.PathPrefix("/users").Subrouter()
	userRouter.HandleFunc("", controller.ListUsers).Methods("GET")
	userRouter.HandleFunc("/{userId}", controller.GetUser).Methods("GET")
	userRouter.HandleFunc("/{userId}", controller.UpdateUser).Methods("PUT")
	userRouter.HandleFunc("/{userId}/posts", controller.UserPosts).Methods("GET")
	userRouter.HandleFunc("/{userId}/follow-stats", controller.FollowStats).Methods("GET")
	userRouter.HandleFunc("/{userId}/followers", controller.Followers).Methods("GET")
	userRouter.HandleFunc("/{userId}/is-following", controller.IsFollowing).Methods("GET")
	userRouter.HandleFunc("/{userId}/follow", controller.Follow).Methods("POST")

	api.HandleFunc("/follows/{followId}", controller.Unfollow).Methods("DELETE")
}
