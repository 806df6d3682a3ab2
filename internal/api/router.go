package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bbh1312/sleep-cash-backend/internal/metrics"
)

type RouterOptions struct {
	AccessLog *zap.Logger
	// Limiter, when set, guards the session and claim mutations.
	Limiter *RateLimiter
}

// NewRouter wires every route. authMW must set "user" on the context.
func NewRouter(app App, authMW gin.HandlerFunc, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), metrics.GinMiddleware())
	if opts.AccessLog != nil {
		r.Use(AccessLogMiddleware(opts.AccessLog))
	}

	r.GET("/health", Health(app))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	limited := []gin.HandlerFunc{}
	if opts.Limiter != nil {
		limited = append(limited, opts.Limiter.Middleware())
	}
	with := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, limited...), h)
	}

	sleep := r.Group("/api/sleep", authMW)
	sleep.POST("/sessions", with(StartSession(app))...)
	sleep.GET("/active-session", GetActiveSession(app))
	sleep.GET("/sessions/:id", GetSession(app))
	sleep.PATCH("/sessions/:id", with(UpdateSession(app))...)
	sleep.POST("/sessions/:id/end", with(EndSession(app))...)
	sleep.GET("/sessions/:id/claims", ListSessionClaims(app))
	sleep.POST("/timer/claim", with(ClaimTimer(app))...)
	sleep.POST("/intermediate/claim", with(ClaimIntermediate(app))...)
	sleep.GET("/status", GetStatus(app))

	points := r.Group("/api/points", authMW)
	points.GET("/balance", GetBalance(app))
	points.GET("/history", GetHistory(app))

	return r
}

func Health(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := app.Store().Ping(ctx); err != nil {
			app.Logger().Errorf("health check failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
