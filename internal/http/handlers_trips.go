package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	"github.com/wayfinderhq/wayfinder/internal/service"
)

// TripHandlers provides HTTP handlers for trip-planning submissions.
type TripHandlers struct {
	Svc *service.TripService
}

// Submit handles HTTP requests to run one trip-planning submission.
//
// The response is always 200 with a result envelope; the envelope's result
// field distinguishes outcomes. Even a body that fails to parse becomes an
// error envelope, so callers see exactly one response shape.
func (h *TripHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.TripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusOK, model.SubmitResult{
			Result: model.SubmitOutcomeError,
			Error:  "invalid request body: " + err.Error(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, h.Svc.Submit(r.Context(), req))
}
