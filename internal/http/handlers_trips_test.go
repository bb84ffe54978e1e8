package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wayfinderhq/wayfinder/config"
	"github.com/wayfinderhq/wayfinder/internal/core"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	"github.com/wayfinderhq/wayfinder/internal/mocks"
	"github.com/wayfinderhq/wayfinder/internal/service"
	"go.uber.org/mock/gomock"
)

type tripHandlerFixture struct {
	handlers    *TripHandlers
	jobs        *mocks.MockJobRepository
	itineraries *mocks.MockItineraryRepository
	planner     *mocks.MockPlanner
}

func newTripHandlersWithMocks(t *testing.T) (*tripHandlerFixture, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)

	jobRepo := mocks.NewMockJobRepository(ctrl)
	itineraryRepo := mocks.NewMockItineraryRepository(ctrl)
	planner := mocks.NewMockPlanner(ctrl)

	jobSvc := service.MustNewJobService(service.JobServiceOptions{Repo: jobRepo})
	itinerarySvc := service.MustNewItineraryService(service.ItineraryServiceOptions{Repo: itineraryRepo})
	tripSvc := service.MustNewTripService(service.TripServiceOptions{
		Jobs:        jobSvc,
		Itineraries: itinerarySvc,
		Planner:     planner,
		Config: config.PlannerConfig{
			Timeout:      5 * time.Second,
			MaxTurns:     3,
			HTTPMaxCalls: 2,
		},
	})

	return &tripHandlerFixture{
		handlers:    &TripHandlers{Svc: tripSvc},
		jobs:        jobRepo,
		itineraries: itineraryRepo,
		planner:     planner,
	}, ctrl
}

func postTrip(t *testing.T, h *TripHandlers, body []byte) model.SubmitResult {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/trips", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Submit(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res model.SubmitResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestSubmitTrip_Success(t *testing.T) {
	f, ctrl := newTripHandlersWithMocks(t)
	defer ctrl.Finish()

	f.jobs.EXPECT().
		CreateIfAbsent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (bool, error) {
			assert.Equal(t, "u-1", req.OwnerID)
			assert.Equal(t, "r-1", req.RequestID)
			return true, nil
		})
	f.planner.EXPECT().
		Plan(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req core.PlanRequest) (*core.PlanResult, error) {
			assert.Contains(t, req.Input, "Lisbon")
			assert.Contains(t, req.Input, "RequestId: r-1")
			return &core.PlanResult{FinalMessage: "Trip planned.", ItineraryID: "it-1", Turns: 2}, nil
		})
	f.jobs.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CompleteJobRequest) (bool, error) {
			assert.Equal(t, model.JobStatusSucceeded, req.Status)
			assert.Equal(t, "it-1", req.ResultItineraryID)
			return true, nil
		})

	body := []byte(`{
		"ownerId":"u-1","requestId":"r-1",
		"destination":"Lisbon","startDate":"2026-04-01","endDate":"2026-04-05"
	}`)
	res := postTrip(t, f.handlers, body)

	assert.Equal(t, model.SubmitOutcomeOK, res.Result)
	assert.Equal(t, "u-1", res.OwnerID)
	assert.Equal(t, "r-1", res.RequestID)
	assert.Equal(t, "Trip planned.", res.Message)
	assert.Empty(t, res.Error)
}

func TestSubmitTrip_DefaultsMissingIdentity(t *testing.T) {
	f, ctrl := newTripHandlersWithMocks(t)
	defer ctrl.Finish()

	f.jobs.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(true, nil)
	f.planner.EXPECT().
		Plan(gomock.Any(), gomock.Any()).
		Return(&core.PlanResult{FinalMessage: "done", ItineraryID: "it-9"}, nil)
	f.jobs.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(true, nil)

	res := postTrip(t, f.handlers, []byte(`{"destination":"Kyoto"}`))

	assert.Equal(t, model.SubmitOutcomeOK, res.Result)
	// Generated identity must come back so the caller can poll for status.
	assert.NotEmpty(t, res.OwnerID)
	assert.NotEmpty(t, res.RequestID)
}

func TestSubmitTrip_MalformedBody(t *testing.T) {
	f, ctrl := newTripHandlersWithMocks(t)
	defer ctrl.Finish()

	res := postTrip(t, f.handlers, []byte(`{not json`))

	assert.Equal(t, model.SubmitOutcomeError, res.Result)
	assert.Contains(t, res.Error, "invalid request body")
}

func TestSubmitTrip_ValidationError(t *testing.T) {
	f, ctrl := newTripHandlersWithMocks(t)
	defer ctrl.Finish()

	res := postTrip(t, f.handlers, []byte(`{}`))

	assert.Equal(t, model.SubmitOutcomeError, res.Result)
	assert.Contains(t, res.Error, "destination or prompt")
	assert.NotEmpty(t, res.OwnerID)
	assert.NotEmpty(t, res.RequestID)
}

func TestSubmitTrip_PlannerFailure(t *testing.T) {
	f, ctrl := newTripHandlersWithMocks(t)
	defer ctrl.Finish()

	f.jobs.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(true, nil)
	f.planner.EXPECT().Plan(gomock.Any(), gomock.Any()).Return(nil, errors.New("model unavailable"))
	f.jobs.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CompleteJobRequest) (bool, error) {
			assert.Equal(t, model.JobStatusFailed, req.Status)
			assert.Equal(t, "model unavailable", req.FinalMessage)
			return true, nil
		})

	res := postTrip(t, f.handlers, []byte(`{"ownerId":"u-1","requestId":"r-1","destination":"Lisbon"}`))

	assert.Equal(t, model.SubmitOutcomeError, res.Result)
	assert.Contains(t, res.Error, "model unavailable")
}

func TestSubmitTrip_SalvagesUnsavedItinerary(t *testing.T) {
	f, ctrl := newTripHandlersWithMocks(t)
	defer ctrl.Finish()

	finalMessage := "Here is your plan:\n```json\n" +
		`{"destination":"Lisbon","startDate":"2026-04-01","endDate":"2026-04-05",` +
		`"items":[{"day":1,"activities":[{"name":"Alfama walk"}]}]}` +
		"\n```"

	f.jobs.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(true, nil)
	// The run described a plan but never called save_itinerary.
	f.planner.EXPECT().
		Plan(gomock.Any(), gomock.Any()).
		Return(&core.PlanResult{FinalMessage: finalMessage}, nil)

	var savedID string
	f.itineraries.EXPECT().
		CreateIfAbsent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, it *model.Itinerary) (bool, error) {
			assert.Equal(t, "u-1", it.OwnerID)
			assert.Equal(t, "Lisbon", it.Destination)
			require.NotEmpty(t, it.ItineraryID)
			savedID = it.ItineraryID
			return true, nil
		})
	f.jobs.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CompleteJobRequest) (bool, error) {
			assert.Equal(t, model.JobStatusSucceeded, req.Status)
			assert.Equal(t, savedID, req.ResultItineraryID)
			return true, nil
		})

	res := postTrip(t, f.handlers, []byte(`{"ownerId":"u-1","requestId":"r-1","destination":"Lisbon"}`))

	assert.Equal(t, model.SubmitOutcomeOK, res.Result)
}
