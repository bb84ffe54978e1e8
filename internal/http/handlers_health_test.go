package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err error
}

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestHealth_OK(t *testing.T) {
	h := &HealthHandlers{DB: stubPinger{}, Cache: stubPinger{}}

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Health(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealth_DegradedWhenStoreUnreachable(t *testing.T) {
	h := &HealthHandlers{DB: stubPinger{err: errors.New("connection refused")}}

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Health(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"status":"degraded"}`, w.Body.String())
}

func TestHealth_CacheOutageIsAdvisory(t *testing.T) {
	h := &HealthHandlers{DB: stubPinger{}, Cache: stubPinger{err: errors.New("connection refused")}}

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Health(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","cache":"unavailable"}`, w.Body.String())
}

func TestHealth_StoreAndCacheDown(t *testing.T) {
	h := &HealthHandlers{
		DB:    stubPinger{err: errors.New("connection refused")},
		Cache: stubPinger{err: errors.New("connection refused")},
	}

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Health(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"status":"degraded","cache":"unavailable"}`, w.Body.String())
}

func TestHealth_HeadHasNoBody(t *testing.T) {
	h := &HealthHandlers{DB: stubPinger{}}

	r := httptest.NewRequest(http.MethodHead, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Health(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, w.Body.String())
}

func TestHealth_NoStoreWired(t *testing.T) {
	h := &HealthHandlers{}

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Health(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
