package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbh1312/sleep-cash-backend/internal"
	"github.com/bbh1312/sleep-cash-backend/internal/auth"
	"github.com/bbh1312/sleep-cash-backend/internal/config"
	"github.com/bbh1312/sleep-cash-backend/internal/service"
	"github.com/bbh1312/sleep-cash-backend/internal/storage"
)

type envelope struct {
	Data  json.RawMessage    `json:"data"`
	Meta  map[string]any     `json:"meta"`
	Error *internal.AppError `json:"error"`
}

type testServer struct {
	router *gin.Engine
	token  string
	issuer *auth.LocalAuthProvider
	now    time.Time
}

func setupRouter(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := internal.NewNopLogger()
	store := storage.NewMemoryStorage(logger)
	require.NoError(t, store.EnsureUser(context.Background(), &internal.User{ID: "u1", TotalPoints: decimal.Zero}))

	ts := &testServer{now: time.Date(2026, 10, 17, 22, 0, 0, 0, time.UTC)}
	svc := service.New(store, service.DefaultPolicy(), logger, service.WithClock(func() time.Time { return ts.now }))

	cfg := &config.Config{AuthMode: "jwt"}
	ts.issuer = auth.NewLocalAuthProvider("test-secret", logger)
	ts.router = NewRouter(&Deps{Log: logger, Service: svc, DB: store}, auth.AuthMiddleware(ts.issuer, cfg), RouterOptions{Limiter: limiter})

	token, err := ts.issuer.IssueToken("u1", "", time.Hour)
	require.NoError(t, err)
	ts.token = token
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return ts.doAs(t, ts.token, method, path, body)
}

func (ts *testServer) doAs(t *testing.T, token, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	ts.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestHealth(t *testing.T) {
	ts := setupRouter(t, nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestUnauthorized(t *testing.T) {
	ts := setupRouter(t, nil)
	w, env := ts.doAs(t, "", http.MethodGet, "/api/sleep/status", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, _ = ts.doAs(t, "garbage", http.MethodPost, "/api/sleep/sessions", "{}")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	ts := setupRouter(t, nil)

	w, env := ts.do(t, http.MethodPost, "/api/sleep/sessions", `{"mood":"calm","white_noise_volume":"35"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	session := decode[internal.SleepSession](t, env.Data)
	assert.Equal(t, internal.SessionRunning, session.Status)
	assert.Equal(t, 35, *session.WhiteNoiseVolume)
	assert.NotEmpty(t, env.Meta["request_id"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, env = ts.do(t, http.MethodPost, "/api/sleep/sessions", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ACTIVE_SESSION_EXISTS", env.Error.Code)

	w, env = ts.do(t, http.MethodGet, "/api/sleep/active-session", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, env.Meta["active"])

	w, env = ts.do(t, http.MethodPatch, "/api/sleep/sessions/"+session.ID, `{"white_noise_volume":150}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_VOLUME", env.Error.Code)

	w, env = ts.do(t, http.MethodPatch, "/api/sleep/sessions/"+session.ID, `{"mood":null,"memo":"fan on"}`)
	require.Equal(t, http.StatusOK, w.Code)
	patched := decode[internal.SleepSession](t, env.Data)
	assert.Nil(t, patched.Mood)
	assert.Equal(t, "fan on", *patched.Memo)

	ts.now = ts.now.Add(95 * time.Minute)
	w, env = ts.do(t, http.MethodPost, "/api/sleep/sessions/"+session.ID+"/end", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ended struct {
		Session internal.SleepSession `json:"session"`
		Award   struct {
			PointsEarned float64 `json:"points_earned"`
			TotalPoints  float64 `json:"total_points"`
		} `json:"award"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ended))
	assert.Equal(t, 95, *ended.Session.TotalSleepMinutes)
	assert.Equal(t, 95.0, ended.Award.PointsEarned)
	assert.Equal(t, 95.0, ended.Award.TotalPoints)

	w, env = ts.do(t, http.MethodPost, "/api/sleep/sessions/"+session.ID+"/end", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SESSION_ALREADY_ENDED", env.Error.Code)

	w, env = ts.do(t, http.MethodPatch, "/api/sleep/sessions/"+session.ID, `{"memo":"late"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SESSION_NOT_RUNNING", env.Error.Code)

	w, env = ts.do(t, http.MethodGet, "/api/sleep/sessions/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", env.Error.Code)
}

func TestClaimEndpoints(t *testing.T) {
	ts := setupRouter(t, nil)

	w, env := ts.do(t, http.MethodPost, "/api/sleep/intermediate/claim", `{"accumulated_points":10}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NO_ACTIVE_SESSION", env.Error.Code)

	w, env = ts.do(t, http.MethodPost, "/api/sleep/timer/claim", `{"accumulated_points":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NO_POINTS_TO_CLAIM", env.Error.Code)

	w, env = ts.do(t, http.MethodPost, "/api/sleep/timer/claim", `{"accumulated_points":"many"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_AMOUNT", env.Error.Code)

	w, env = ts.do(t, http.MethodPost, "/api/sleep/timer/claim", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)

	w, env = ts.do(t, http.MethodPost, "/api/sleep/timer/claim", `{"accumulated_points":50}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var award struct {
		PointsEarned float64 `json:"points_earned"`
		Bank         struct {
			RemainingPoints float64 `json:"remaining_points"`
		} `json:"bank"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &award))
	assert.Equal(t, 60.0, award.PointsEarned)
	assert.Equal(t, 140.0, award.Bank.RemainingPoints)

	w, _ = ts.do(t, http.MethodPost, "/api/sleep/sessions", "{}")
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = ts.do(t, http.MethodPost, "/api/sleep/intermediate/claim", `{"accumulated_points":145}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DAILY_LIMIT_EXCEEDED", env.Error.Code)
	assert.Equal(t, 140.0, env.Error.Details["available"])
	assert.Equal(t, 200.0, env.Error.Details["daily_limit"])

	w, env = ts.do(t, http.MethodPost, "/api/sleep/intermediate/claim", `{"accumulated_points":"20"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var inter struct {
		Sequence  int    `json:"claim_sequence"`
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inter))
	assert.Equal(t, 1, inter.Sequence)

	w, env = ts.do(t, http.MethodGet, "/api/sleep/sessions/"+inter.SessionID+"/claims", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, env.Meta["count"])

	for _, body := range []string{
		`{"accumulated_points":5,"session_id":"not-a-uuid"}`,
		`{"accumulated_points":5,"session_id":17}`,
	} {
		w, env = ts.do(t, http.MethodPost, "/api/sleep/intermediate/claim", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_REQUEST", env.Error.Code, body)
	}
}

func TestPointsEndpoints(t *testing.T) {
	ts := setupRouter(t, nil)
	for i := 0; i < 3; i++ {
		w, _ := ts.do(t, http.MethodPost, "/api/sleep/timer/claim", `{"accumulated_points":5}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, env := ts.do(t, http.MethodGet, "/api/points/balance", "")
	require.Equal(t, http.StatusOK, w.Code)
	balance := decode[service.Balance](t, env.Data)
	assert.Equal(t, "45", balance.TotalPoints.String())

	w, env = ts.do(t, http.MethodGet, "/api/points/history?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[[]internal.PointLedgerEntry](t, env.Data)
	assert.Len(t, items, 2)
	assert.Equal(t, 3.0, env.Meta["total"])
	assert.Equal(t, internal.LedgerTimerClaim, items[0].Type)

	w, env = ts.do(t, http.MethodGet, "/api/points/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)

	w, env = ts.do(t, http.MethodGet, "/api/sleep/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		TotalPoints float64 `json:"total_points"`
		Bank        struct {
			DayKey     string  `json:"day_key"`
			TodayTotal float64 `json:"today_total"`
		} `json:"bank"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, 45.0, status.TotalPoints)
	assert.Equal(t, "2026-10-17", status.Bank.DayKey)

	ghost, err := ts.issuer.IssueToken("ghost", "", time.Hour)
	require.NoError(t, err)
	w, env = ts.doAs(t, ghost, http.MethodGet, "/api/points/balance", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "USER_NOT_FOUND", env.Error.Code)

	w, env = ts.doAs(t, ghost, http.MethodPost, "/api/sleep/timer/claim", `{"accumulated_points":5}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "USER_NOT_FOUND", env.Error.Code)
}

func TestRateLimit(t *testing.T) {
	ts := setupRouter(t, NewRateLimiter(0.001, 2, internal.NewNopLogger()))

	for i := 0; i < 2; i++ {
		w, _ := ts.do(t, http.MethodPost, "/api/sleep/timer/claim", `{"accumulated_points":1}`)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, env := ts.do(t, http.MethodPost, "/api/sleep/timer/claim", `{"accumulated_points":1}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)

	// Reads are not limited.
	w, _ = ts.do(t, http.MethodGet, "/api/sleep/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, internal.NewNopLogger())
	now := time.Now()
	rl.getLimiter("a", now.Add(-time.Hour))
	rl.getLimiter("b", now)
	rl.Cleanup(now)
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "b")
}
