package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"safespace/controllers"
)

// RegisterRoutes sets up the unauthenticated service routes
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/welcome", controllers.WelcomeHandler).Methods("GET")
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
}

// RegisterSocketRoutes mounts the Socket.IO endpoint.
func RegisterSocketRoutes(r *mux.Router, socket http.Handler) {
	r.PathPrefix("/socket.io/").Handler(socket)
}

// APIRouter returns the /api subrouter with the rate limit applied.
func APIRouter(r *mux.Router, limiter *RateLimiter) *mux.Router {
	api := r.PathPrefix("/api").Subrouter()
	if limiter != nil {
		api.Use(limiter.Middleware)
	}
	return api
}
