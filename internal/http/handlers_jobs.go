package httpx

import (
	"errors"
	"net/http"

	"github.com/wayfinderhq/wayfinder/internal/data"
	"github.com/wayfinderhq/wayfinder/internal/service"
)

// JobHandlers provides HTTP handlers for job status reads.
type JobHandlers struct {
	Svc *service.JobService
}

// Status handles HTTP requests for the poller-facing job status view.
// 404 means the record does not exist (yet); pollers treat that as transient
// while their grace budget lasts.
func (h *JobHandlers) Status(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("ownerID")
	requestID := r.PathValue("requestID")
	if ownerID == "" || requestID == "" {
		WriteError(
			w,
			ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_path",
				Err:     errors.New("owner id and request id are required"),
			},
		)
		return
	}

	view, err := h.Svc.View(r.Context(), ownerID, requestID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "job_not_found", Err: err})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "status_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, view)
}
