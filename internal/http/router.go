package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// RouterConfig wires handlers into the router. Nil handlers leave their
// routes unregistered.
type RouterConfig struct {
	Authenticator Authenticator
	Users         *UserHandler
	Rooms         *RoomHandler
	Reservations  *ReservationHandler
	Reports       *ReportHandler
	Events        *EventsHandler
	Metrics       http.Handler
	// MetricsPath defaults to /metrics.
	MetricsPath string
	// Middleware wraps every route, public ones included, in order.
	Middleware []mux.MiddlewareFunc
	Logger     *slog.Logger
}

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	responder := newResponder(cfg.Logger)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusNotFound, nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		responder.writeJSON(req.Context(), w, http.StatusMethodNotAllowed, errorResponse{
			ErrorCode: "METHOD_NOT_ALLOWED",
			Message:   http.StatusText(http.StatusMethodNotAllowed),
		})
	})

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.Metrics).Methods(http.MethodGet)
	}
	if cfg.Users != nil {
		r.HandleFunc("/signup", cfg.Users.Signup).Methods(http.MethodPost)
	}

	api := r.NewRoute().Subrouter()
	if cfg.Authenticator != nil {
		api.Use(RequireBasicAuth(cfg.Authenticator, cfg.Logger))
	}

	if h := cfg.Rooms; h != nil {
		api.HandleFunc("/rooms", h.List).Methods(http.MethodGet)
		api.HandleFunc("/rooms", h.Create).Methods(http.MethodPost)
		api.HandleFunc("/rooms/{name}", h.Get).Methods(http.MethodGet)
		api.HandleFunc("/rooms/{name}", h.Update).Methods(http.MethodPut)
		api.HandleFunc("/rooms/{name}", h.Delete).Methods(http.MethodDelete)
		api.HandleFunc("/rooms/{name}/availability", h.Availability).Methods(http.MethodGet)
	}

	if h := cfg.Reservations; h != nil {
		api.HandleFunc("/rooms/{name}/reservations", h.ListForRoom).Methods(http.MethodGet)
		api.HandleFunc("/reservations", h.ListAll).Methods(http.MethodGet)
		api.HandleFunc("/reservations", h.Submit).Methods(http.MethodPost)
		api.HandleFunc("/reservations/mine", h.ListMine).Methods(http.MethodGet)
		api.HandleFunc("/reservations/pending", h.ListPending).Methods(http.MethodGet)
		api.HandleFunc("/reservations/{id}", h.Get).Methods(http.MethodGet)
		api.HandleFunc("/reservations/{id}", h.Cancel).Methods(http.MethodDelete)
		api.HandleFunc("/reservations/{id}/approve", h.Approve).Methods(http.MethodPost)
		api.HandleFunc("/reservations/{id}/reject", h.Reject).Methods(http.MethodPost)
	}

	if h := cfg.Users; h != nil {
		api.HandleFunc("/users", h.List).Methods(http.MethodGet)
		api.HandleFunc("/users", h.Create).Methods(http.MethodPost)
		api.HandleFunc("/users/{email}/role", h.UpdateRole).Methods(http.MethodPut)
		api.HandleFunc("/users/{email}", h.Delete).Methods(http.MethodDelete)
	}

	if cfg.Reports != nil {
		api.HandleFunc("/reports/summary", cfg.Reports.Summary).Methods(http.MethodGet)
	}
	if cfg.Events != nil {
		api.HandleFunc("/events", cfg.Events.Stream).Methods(http.MethodGet)
	}

	return r
}
