package gateway

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for draft connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	stateProvider     StateProvider
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, provider StateProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		stateProvider:     provider,
	}
}

// HandleDraftConnection streams the events of the draft named by the
// draft_id query parameter.
func (h *WebSocketHandler) HandleDraftConnection(w http.ResponseWriter, r *http.Request) {
	draftIDStr := r.URL.Query().Get("draft_id")
	if draftIDStr == "" {
		http.Error(w, "draft_id is required", http.StatusBadRequest)
		return
	}

	draftID, err := uuid.Parse(draftIDStr)
	if err != nil {
		http.Error(w, "invalid draft_id format", http.StatusBadRequest)
		return
	}

	if h.stateProvider != nil {
		if _, err := h.stateProvider.GetDraftState(r.Context(), draftID); err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "draft not found", http.StatusNotFound)
				return
			}
			log.Error().Err(err).Str("draft_id", draftID.String()).Msg("failed to look up draft")
			http.Error(w, "failed to look up draft", http.StatusInternalServerError)
			return
		}
	}

	teamID := r.URL.Query().Get("team_id")
	if teamID == "" {
		teamID = "spectator"
	}

	// Upgrade writes its own error response.
	if err := h.connectionManager.UpgradeConnection(w, r, teamID, draftID); err != nil {
		log.Error().
			Err(err).
			Str("draft_id", draftID.String()).
			Str("team_id", teamID).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.connectionManager.Stats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/draft", h.HandleDraftConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
