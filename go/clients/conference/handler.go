package conference

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Handler serves participant tokens over HTTP.
type Handler struct {
	issuer TokenIssuer
	rooms  *RoomClient
	config Config
}

// NewHandler builds the token endpoints. rooms may be nil.
func NewHandler(cfg Config, issuer TokenIssuer, rooms *RoomClient) *Handler {
	return &Handler{issuer: issuer, rooms: rooms, config: cfg}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/livekit/token", h.token).Methods(http.MethodGet)
	r.HandleFunc("/livekit/debug", h.debug).Methods(http.MethodGet)
}

func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("code")
	identity := r.URL.Query().Get("identity")
	if room == "" || identity == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing code or identity"})
		return
	}

	if h.rooms != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		if _, err := h.rooms.CreateRoom(ctx, room); err != nil {
			log.Warn().Err(err).Str("room_code", room).Msg("conference room not ensured")
		}
		cancel()
	}

	tok, err := h.issuer.IssueToken(room, identity)
	if err != nil {
		log.Error().Err(err).Str("room_code", room).Msg("failed to issue conference token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *Handler) debug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"hasUrl":    h.config.URL != "",
		"hasKey":    h.config.APIKey != "",
		"hasSecret": h.config.APISecret != "",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}
