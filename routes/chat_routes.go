package routes

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"safespace/controllers"
	"safespace/query"
)

// RegisterChatRoutes sets up routes for chat rooms and messages under /api/chat
func RegisterChatRoutes(api *mux.Router, q *query.API, notifier controllers.MessageNotifier, logger *zap.Logger) {
	controller := controllers.NewChatController(q, notifier, logger)

	chatRouter := api.PathPrefix("/chat").Subrouter()
	chatRouter.HandleFunc("/rooms", controller.GetChatRooms).Methods("GET")
	chatRouter.HandleFunc("/rooms", controller.CreateChatRoom).Methods("POST")
	chatRouter.HandleFunc("/rooms/{roomId}/messages", controller.GetMessages).Methods("GET")
	chatRouter.HandleFunc("/rooms/{roomId}/messages", controller.SendMessage).Methods("POST")
}
