package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/app/frame/types"
	ctypes "github.com/Jaberkh/Nut-test/app/frame/controller/types"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.HandleFunc("/health", c.HandleHealth).Methods("GET")
	r.HandleFunc("/state", c.HandleState).Methods("GET")

	return r, nil
}

// WithRecover converts a per-request panic into a generic degraded response
// so one bad request can never take the process down.
func WithRecover(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Request handler panicked", zap.Any("panic", rec))
				writeJSON(w, http.StatusInternalServerError, ctypes.ErrorResponse{
					Status:  "error",
					Message: "Error processing request. Please try again.",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
