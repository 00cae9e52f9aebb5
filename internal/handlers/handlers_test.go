package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/services"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/upstream"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) CheckAvailable(ctx context.Context, hostID, token string) (models.Availability, error) {
	args := m.Called(hostID, token)
	return args.Get(0).(models.Availability), args.Error(1)
}

type mockDeleter struct {
	mock.Mock
}

func (m *mockDeleter) DeleteHistory(ctx context.Context, token, historyID string) error {
	return m.Called(token, historyID).Error(0)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) Response {
	t.Helper()
	var raw struct {
		Success   bool            `json:"success"`
		Message   string          `json:"message"`
		Data      json.RawMessage `json:"data"`
		Retryable bool            `json:"retryable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return Response{Success: raw.Success, Message: raw.Message, Retryable: raw.Retryable}
}

func newPresenceRouter(clk *testingclock.FakeClock) http.Handler {
	reg := services.NewMemoryRegistry(clk)
	return NewRouter(RouterDeps{Presence: NewPresenceHandler(reg, clk, quietLogger())})
}

func TestHeartbeat_RecordsAndLists(t *testing.T) {
	clk := testingclock.NewFakeClock(time.UnixMilli(1_700_000_000_000))
	router := newPresenceRouter(clk)

	body := `{"participant_id":"p1","channel_name":"ch","room_id":"9","role":"female"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/heartbeat", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var hb models.HeartbeatResponse
	resp := decode(t, rec, &hb)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, hb.ActiveCount)
	assert.Equal(t, int64(1_700_000_000_000), hb.Timestamp)

	clk.Step(5 * time.Second)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/heartbeat", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var list models.HeartbeatListResponse
	decode(t, rec, &list)
	require.Len(t, list.Heartbeats, 1)
	assert.Equal(t, int64(5), list.Heartbeats[0].SecondsSinceLastSeen)
	assert.Equal(t, "9", list.Heartbeats[0].RoomID)
}

func TestHeartbeat_ValidationErrors(t *testing.T) {
	router := newPresenceRouter(testingclock.NewFakeClock(time.Now()))

	for _, body := range []string{`{"channel_name":"ch","role":"male"}`, `{"participant_id":"p"`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/heartbeat", strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, decode(t, rec, nil).Success)
	}
}

func availabilityRequest(hostID, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/channels/availability?hostId="+hostID, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: AuthCookie, Value: token})
	}
	return req
}

func TestAvailability_StatusMapping(t *testing.T) {
	cases := []struct {
		name      string
		result    models.Availability
		err       error
		status    int
		retryable bool
	}{
		{"available", models.Availability{Available: true, Reason: "available"}, nil, http.StatusOK, false},
		{"occupied", models.Availability{Reason: "occupied"}, nil, http.StatusOK, false},
		{"unauthorized", models.Availability{Reason: "unauthorized"}, upstream.ErrUnauthorized, http.StatusUnauthorized, false},
		{"timeout", models.Availability{Reason: "service error"}, &upstream.NetworkError{Timeout: true, Err: errors.New("deadline")}, http.StatusServiceUnavailable, true},
		{"upstream 500", models.Availability{Reason: "service error"}, &upstream.StatusError{StatusCode: 500}, http.StatusBadGateway, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checker := new(mockChecker)
			checker.On("CheckAvailable", "host-1", "tok").Return(tc.result, tc.err).Once()
			router := NewRouter(RouterDeps{Availability: NewAvailabilityHandler(checker, quietLogger())})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, availabilityRequest("host-1", "tok"))

			assert.Equal(t, tc.status, rec.Code)
			var got models.Availability
			resp := decode(t, rec, &got)
			assert.Equal(t, tc.result, got)
			assert.Equal(t, tc.retryable, resp.Retryable)
			checker.AssertExpectations(t)
		})
	}
}

func TestAvailability_MissingHostID(t *testing.T) {
	router := NewRouter(RouterDeps{Availability: NewAvailabilityHandler(new(mockChecker), quietLogger())})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, availabilityRequest("", "tok"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStories_TrackAndUntrack(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	deleter := new(mockDeleter)
	deleter.On("DeleteHistory", "tok", "h1").Return(nil).Once()
	reaper := services.NewStoryReaper(deleter, clk, time.Second, quietLogger())
	defer reaper.Close()
	router := NewRouter(RouterDeps{Stories: NewStoryHandler(reaper, quietLogger())})

	body := `{"slot":"s1","history_id":"h1","date_history":"` + clk.Now().Add(-49*time.Hour).Format(time.RFC3339) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/stories/track", strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: AuthCookie, Value: "tok"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status models.StoryStatus
	decode(t, rec, &status)
	assert.True(t, status.Expired)
	assert.True(t, status.Deleted)
	deleter.AssertExpectations(t)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/stories/track/s1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/stories/track/s1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStories_RejectsBadInput(t *testing.T) {
	reaper := services.NewStoryReaper(new(mockDeleter), testingclock.NewFakeClock(time.Now()), time.Second, quietLogger())
	defer reaper.Close()
	router := NewRouter(RouterDeps{Stories: NewStoryHandler(reaper, quietLogger())})

	req := httptest.NewRequest(http.MethodPost, "/api/stories/track", strings.NewReader(`{"history_id":"h1","date_history":"yesterday"}`))
	req.AddCookie(&http.Cookie{Name: AuthCookie, Value: "tok"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/stories/track", strings.NewReader(`{"history_id":"h1","date_history":"2026-01-01T00:00:00Z"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(RouterDeps{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}
