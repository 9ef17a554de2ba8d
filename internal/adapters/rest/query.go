package rest

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/cadenzalab/cadenza/internal/core/domain"
	"github.com/cadenzalab/cadenza/internal/core/services"
)

const defaultOwner = "local"

type queryRequest struct {
	Query            string `json:"query"`
	Owner            string `json:"owner,omitempty"`
	Limit            int    `json:"limit,omitempty"`
	Regenerate       bool   `json:"regenerate,omitempty"`
	PreviousResultID string `json:"previous_result_id,omitempty"`
}

// Query handles POST /query, the main generation endpoint.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.Owner == "" {
		req.Owner = defaultOwner
	}

	resp, err := h.engine.Generate(r.Context(), services.Request{
		Query:            req.Query,
		Owner:            req.Owner,
		Limit:            req.Limit,
		Regenerate:       req.Regenerate,
		PreviousResultID: req.PreviousResultID,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, resp)
}

// ListPlaylists handles GET /playlists.
func (h *Handler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = defaultOwner
	}
	playlists, err := h.engine.Playlists(r.Context(), owner)
	if err != nil {
		h.fail(w, err)
		return
	}
	if playlists == nil {
		playlists = []domain.Playlist{}
	}
	h.respond(w, http.StatusOK, playlists)
}

// GetPlaylist handles GET /playlists/{id}.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.engine.Playlist(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, playlist)
}

type feedbackRequest struct {
	Owner      string `json:"owner,omitempty"`
	PlaylistID string `json:"playlist_id,omitempty"`
	TrackRef   string `json:"track_ref,omitempty"`
	Verdict    string `json:"verdict"`
	Comment    string `json:"comment,omitempty"`
}

// PostFeedback handles POST /feedback.
func (h *Handler) PostFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.Owner == "" {
		req.Owner = defaultOwner
	}

	saved, err := h.engine.RecordFeedback(r.Context(), domain.Feedback{
		Owner:      req.Owner,
		PlaylistID: req.PlaylistID,
		TrackRef:   req.TrackRef,
		Verdict:    req.Verdict,
		Comment:    req.Comment,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusCreated, saved)
}
