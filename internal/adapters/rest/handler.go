// Package rest exposes the engine over HTTP with the standard library
// router. Error mapping is uniform: validation failures become 400, a
// missing entity 404, an unreadable catalog 503, everything else 500.
package rest

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/cadenzalab/cadenza/internal/core/domain"
	"github.com/cadenzalab/cadenza/internal/core/ports"
	"github.com/cadenzalab/cadenza/internal/core/services"
)

// Handler manages the HTTP interface.
type Handler struct {
	engine *services.Engine
	router *http.ServeMux
	log    *logrus.Entry
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(engine *services.Engine, log *logrus.Logger) *Handler {
	h := &Handler{
		engine: engine,
		router: http.NewServeMux(),
		log:    log.WithField("component", "rest"),
	}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.router.HandleFunc("GET /health", h.HealthCheck)
	h.router.HandleFunc("POST /query", h.Query)
	h.router.HandleFunc("GET /playlists", h.ListPlaylists)
	h.router.HandleFunc("GET /playlists/{id}", h.GetPlaylist)
	h.router.HandleFunc("POST /feedback", h.PostFeedback)
}

// HealthCheck verifies the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Warn("response encoding failed")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		h.respond(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		h.respond(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, ports.ErrCatalog):
		h.log.WithError(err).Error("catalog failure")
		h.respond(w, http.StatusServiceUnavailable, errorBody{Error: "catalog unavailable, retry later"})
	default:
		h.log.WithError(err).Error("request failed")
		h.respond(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
