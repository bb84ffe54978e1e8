package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wayfinderhq/wayfinder/internal/data"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	"github.com/wayfinderhq/wayfinder/internal/mocks"
	"github.com/wayfinderhq/wayfinder/internal/service"
	"go.uber.org/mock/gomock"
)

func newJobHandlersWithMock(t *testing.T) (*JobHandlers, *mocks.MockJobRepository, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockJobRepository(ctrl)
	svc := service.MustNewJobService(service.JobServiceOptions{Repo: mockRepo})
	return &JobHandlers{Svc: svc}, mockRepo, ctrl
}

func newStatusRequest(ownerID, requestID string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/jobs/"+ownerID+"/"+requestID, nil)
	r.SetPathValue("ownerID", ownerID)
	r.SetPathValue("requestID", requestID)
	return r
}

func TestJobStatus_Running(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	job := &model.Job{
		OwnerID:   "u-1",
		JobKey:    model.JobKeyFor("r-1"),
		Status:    model.JobStatusRunning,
		StartedAt: time.Now(),
		Progress:  []string{"10:00:01  STATUS: researching flights", "10:00:05  TOOL: http_request"},
	}
	mockRepo.EXPECT().Get(gomock.Any(), "u-1", "r-1").Return(job, nil)

	w := httptest.NewRecorder()
	h.Status(w, newStatusRequest("u-1", "r-1"))

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view model.JobView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, model.JobStatusRunning, view.Status)
	assert.Equal(t, job.Progress, view.Progress)
	assert.Nil(t, view.FinalMessage)
	assert.Nil(t, view.ResultItineraryID)
}

func TestJobStatus_Terminal(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	final := "Itinerary saved."
	itineraryID := "9f2d7c1e-0000-5000-8000-000000000000"
	job := &model.Job{
		OwnerID:           "u-1",
		JobKey:            model.JobKeyFor("r-1"),
		Status:            model.JobStatusSucceeded,
		Progress:          []string{"10:00:01  STATUS: done"},
		FinalMessage:      &final,
		ResultItineraryID: &itineraryID,
	}
	mockRepo.EXPECT().Get(gomock.Any(), "u-1", "r-1").Return(job, nil)

	w := httptest.NewRecorder()
	h.Status(w, newStatusRequest("u-1", "r-1"))

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view model.JobView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, model.JobStatusSucceeded, view.Status)
	assert.True(t, view.Done())
	require.NotNil(t, view.FinalMessage)
	assert.Equal(t, final, *view.FinalMessage)
	require.NotNil(t, view.ResultItineraryID)
	assert.Equal(t, itineraryID, *view.ResultItineraryID)
}

func TestJobStatus_EmptyProgressIsArray(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	job := &model.Job{
		OwnerID: "u-1",
		JobKey:  model.JobKeyFor("r-1"),
		Status:  model.JobStatusRunning,
	}
	mockRepo.EXPECT().Get(gomock.Any(), "u-1", "r-1").Return(job, nil)

	w := httptest.NewRecorder()
	h.Status(w, newStatusRequest("u-1", "r-1"))

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// A job with no progress yet must render [] rather than null.
	assert.Contains(t, w.Body.String(), `"progress":[]`)
}

func TestJobStatus_NotFound(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	mockRepo.EXPECT().Get(gomock.Any(), "u-1", "missing").Return(nil, data.ErrJobNotFound)

	w := httptest.NewRecorder()
	h.Status(w, newStatusRequest("u-1", "missing"))

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "job_not_found", body["error"])
}

func TestJobStatus_StoreError(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	mockRepo.EXPECT().Get(gomock.Any(), "u-1", "r-1").Return(nil, errors.New("connection refused"))

	w := httptest.NewRecorder()
	h.Status(w, newStatusRequest("u-1", "r-1"))

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
