package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
)

// ActiveAuctionsResponse lists the auctions with a live session.
type ActiveAuctionsResponse struct {
	Auctions []string `json:"auctions"`
}

// StateHandler handles HTTP requests for live auction state
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetAuctionState handles GET /api/auctions/{id}/state
func (h *StateHandler) HandleGetAuctionState(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid auction ID format", http.StatusBadRequest)
		return
	}

	state, err := h.stateProvider.Snapshot(r.Context(), auctionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, coordinator.ErrNoSession) {
			status = http.StatusNotFound
		} else if rej, ok := coordinator.AsRejection(err); ok && rej.Kind == coordinator.KindTransport {
			status = http.StatusServiceUnavailable
		}
		log.Error().Err(err).Str("auction_id", auctionID.String()).Msg("failed to get auction state")
		http.Error(w, "Failed to get auction state", status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode auction state response")
	}
}

// HandleGetActiveAuctions handles GET /api/auctions/active
func (h *StateHandler) HandleGetActiveAuctions(w http.ResponseWriter, r *http.Request) {
	resp := ActiveAuctionsResponse{Auctions: []string{}}
	for _, id := range h.stateProvider.Active() {
		resp.Auctions = append(resp.Auctions, id.String())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode active auctions response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auctions/active", h.HandleGetActiveAuctions)
	mux.HandleFunc("GET /api/auctions/{id}/state", h.HandleGetAuctionState)
}
