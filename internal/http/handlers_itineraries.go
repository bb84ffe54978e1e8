package httpx

import (
	"errors"
	"net/http"

	"github.com/wayfinderhq/wayfinder/internal/data"
	"github.com/wayfinderhq/wayfinder/internal/service"
)

// ItineraryHandlers provides HTTP handlers for itinerary lookups.
type ItineraryHandlers struct {
	Svc *service.ItineraryService
}

// List handles HTTP requests for an owner's recent itineraries, most recent
// first. The limit query param is optional; the service clamps it.
func (h *ItineraryHandlers) List(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("ownerID")
	if ownerID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("owner id is required")},
		)
		return
	}
	limit := parseIntQuery(r, "limit", 0)

	itineraries, err := h.Svc.ListRecent(r.Context(), ownerID, limit)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "list_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, itineraries)
}

// Get handles HTTP requests for a single itinerary.
func (h *ItineraryHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("ownerID")
	itineraryID := r.PathValue("itineraryID")
	if ownerID == "" || itineraryID == "" {
		WriteError(
			w,
			ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_path",
				Err:     errors.New("owner id and itinerary id are required"),
			},
		)
		return
	}

	itinerary, err := h.Svc.Get(r.Context(), ownerID, itineraryID)
	if err != nil {
		if errors.Is(err, data.ErrItineraryNotFound) {
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "itinerary_not_found", Err: err})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "get_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, itinerary)
}
