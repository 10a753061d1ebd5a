package routes

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"safespace/controllers"
	"safespace/query"
)

// RegisterPostRoutes sets up feed, post and save routes under /api
func RegisterPostRoutes(api *mux.Router, q *query.API, logger *zap.Logger) {
	controller := controllers.NewPostController(q, logger)

	postRouter := api.PathPrefix("/posts").Subrouter()
	postRouter.HandleFunc("", controller.ListPosts).Methods("GET")
	postRouter.HandleFunc("", controller.CreatePost).Methods("POST")
	postRouter.HandleFunc("/recent", controller.RecentPosts).Methods("GET")
	postRouter.HandleFunc("/search", controller.SearchPosts).Methods("GET")
	postRouter.HandleFunc("/{postId}", controller.GetPost).Methods("GET")
	postRouter.HandleFunc("/{postId}", controller.UpdatePost).Methods("PUT")
	postRouter.HandleFunc("/{postId}", controller.DeletePost).Methods("DELETE")
	postRouter.HandleFunc("/{postId}/likes", controller.LikePost).Methods("PUT")
	postRouter.HandleFunc("/{postId}/saves", controller.SavePost).Methods("POST")

	api.HandleFunc("/saves/{saveId}", controller.DeleteSavedPost).Methods("DELETE")
}
