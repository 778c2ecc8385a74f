package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcdev12/buzzer/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Handler serves the admin views as plain JSON over HTTP.
type Handler struct {
	app MatchesApp
}

func NewHandler(app MatchesApp) *Handler {
	return &Handler{app: app}
}

// RegisterRoutes mounts the admin endpoints on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/admin/matches", h.listMatches).Methods(http.MethodGet)
	r.HandleFunc("/admin/matches/{id}", h.getMatch).Methods(http.MethodGet)
}

func (h *Handler) listMatches(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	matches, err := h.app.ListMatches(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("admin list matches failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ListMatchesResponse{Matches: matchesToViews(matches)})
}

func (h *Handler) getMatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	m, err := h.app.GetMatch(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrMatchNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		log.Error().Err(err).Str("match_id", id.String()).Msg("admin get match failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, GetMatchResponse{Match: matchToView(*m)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to write admin response")
	}
}
