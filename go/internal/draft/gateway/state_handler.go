package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// StateHandler handles HTTP requests for draft state
type StateHandler struct {
	stateProvider StateProvider
	clock         clockwork.Clock
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider, clock clockwork.Clock) *StateHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StateHandler{
		stateProvider: provider,
		clock:         clock,
	}
}

// HandleGetDraftState handles GET /api/drafts/{id}/state
func (h *StateHandler) HandleGetDraftState(w http.ResponseWriter, r *http.Request) {
	draftID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid draft ID format", http.StatusBadRequest)
		return
	}

	state, err := h.stateProvider.GetDraftState(r.Context(), draftID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "Draft not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("failed to get draft state")
		http.Error(w, "Failed to get draft state", http.StatusInternalServerError)
		return
	}

	state.setTimeRemaining(h.clock.Now())
	writeJSON(w, state)
}

// HandleGetActiveDrafts handles GET /api/drafts/active
func (h *StateHandler) HandleGetActiveDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.stateProvider.GetActiveDrafts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get active drafts")
		http.Error(w, "Failed to get active drafts", http.StatusInternalServerError)
		return
	}
	if drafts == nil {
		drafts = []DraftSummary{}
	}
	writeJSON(w, drafts)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/drafts/active", h.HandleGetActiveDrafts)
	mux.HandleFunc("GET /api/drafts/{id}/state", h.HandleGetDraftState)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
