package controller

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rankroom/rankroom/app/polls/types"
)

type Controller struct {
	App *types.App

	actions map[string]actionHandler
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	c := &Controller{App: app}
	c.actions = c.actionPipeline()
	return c
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")

	r.HandleFunc("/polls", c.HandleCreatePoll).Methods("POST")
	r.HandleFunc("/polls/join", c.HandleJoinPoll).Methods("POST")
	r.Handle("/polls/rejoin", c.RequireAuth(http.HandlerFunc(c.HandleRejoinPoll))).Methods("POST")
	r.HandleFunc("/polls/ws", c.HandlePollSocket).Methods("GET")
	r.HandleFunc("/polls/{id}", c.HandleGetPoll).Methods("GET")

	return r
}

// WithCORS enables cross-origin requests for browser clients.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
