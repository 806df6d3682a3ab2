package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAwardsRecorder(t *testing.T) {
	before := testutil.ToFloat64(awardsTotal.WithLabelValues("timer"))
	Awards{}.RecordAward("timer", 60)
	assert.Equal(t, before+1, testutil.ToFloat64(awardsTotal.WithLabelValues("timer")))

	rejBefore := testutil.ToFloat64(rejectionsTotal.WithLabelValues("intermediate", "daily_limit"))
	Awards{}.RecordRejection("intermediate", "daily_limit")
	assert.Equal(t, rejBefore+1, testutil.ToFloat64(rejectionsTotal.WithLabelValues("intermediate", "daily_limit")))
}

func TestGinMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/sleep/sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sleep/sessions/abc", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `path="/api/sleep/sessions/:id"`))
	assert.False(t, strings.Contains(body, "/api/sleep/sessions/abc"))
}
