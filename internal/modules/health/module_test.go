package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pve_client/internal/modules/health/service"
)

func TestMux(t *testing.T) {
	state := service.NewState()
	mux := NewMux(state)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/livez").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz").Code)

	state.SetReady(true)
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz").Code)
	state.SetWSConnected(true)
	assert.Equal(t, http.StatusOK, get("/readyz").Code)

	state.TouchEvent(time.Unix(1730900000, 0))
	state.AddReconnect()
	state.SetCompiling(2)

	rec := get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"ready": true,
		"wsConnected": true,
		"uptimeSec": 0,
		"lastEventUnix": 1730900000,
		"reconnects": 1,
		"compiling": 2
	}`, rec.Body.String())
}
