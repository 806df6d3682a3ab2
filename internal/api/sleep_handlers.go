package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/bbh1312/sleep-cash-backend/internal/service"
)

func StartSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		raw, err := bindObject(c)
		if err != nil {
			HandleError(c, app.Logger(), err, "Invalid JSON")
			return
		}
		patch, err := service.ParseSessionPatch(raw)
		if err != nil {
			HandleError(c, app.Logger(), err, "Validation failed")
			return
		}

		session, err := app.Rewards().StartSession(c.Request.Context(), user.ID, patch)
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to start session")
			return
		}
		HandleCreated(c, app.Logger(), session)
	}
}

func GetActiveSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		session, err := app.Rewards().ActiveSession(c.Request.Context(), user.ID)
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to fetch active session")
			return
		}
		HandleSuccess(c, app.Logger(), gin.H{"session": session}, map[string]any{"active": session != nil})
	}
}

func GetSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		session, err := app.Rewards().GetSession(c.Request.Context(), user.ID, c.Param("id"))
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to fetch session")
			return
		}
		HandleSuccess(c, app.Logger(), session, nil)
	}
}

func UpdateSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		raw, err := bindObject(c)
		if err != nil {
			HandleError(c, app.Logger(), err, "Invalid JSON")
			return
		}
		patch, err := service.ParseSessionPatch(raw)
		if err != nil {
			HandleError(c, app.Logger(), err, "Validation failed")
			return
		}

		session, err := app.Rewards().UpdateSession(c.Request.Context(), user.ID, c.Param("id"), patch)
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to update session")
			return
		}
		HandleSuccess(c, app.Logger(), session, nil)
	}
}

func EndSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		raw, err := bindObject(c)
		if err != nil {
			HandleError(c, app.Logger(), err, "Invalid JSON")
			return
		}
		var opts service.EndOptions
		if v, ok := raw["skip_award"]; ok {
			if err := json.Unmarshal(v, &opts.SkipAward); err != nil {
				HandleError(c, app.Logger(), fmt.Errorf("%w: skip_award must be a boolean", errInvalidRequest), "Invalid JSON")
				return
			}
		}

		result, err := app.Rewards().EndSession(c.Request.Context(), user.ID, c.Param("id"), opts)
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to end session")
			return
		}
		HandleSuccess(c, app.Logger(), result, nil)
	}
}

func ListSessionClaims(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		claims, err := app.Rewards().SessionClaims(c.Request.Context(), user.ID, c.Param("id"))
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to fetch claims")
			return
		}
		HandleSuccess(c, app.Logger(), claims, map[string]any{"count": len(claims)})
	}
}

func ClaimTimer(app App) gin.HandlerFunc {
	return claimHandler(app, app.Rewards().ClaimTimer, "Failed to claim timer points")
}

func ClaimIntermediate(app App) gin.HandlerFunc {
	return claimHandler(app, app.Rewards().ClaimIntermediate, "Failed to claim intermediate points")
}

type claimFunc func(ctx context.Context, userID string, req service.ClaimRequest) (*service.AwardResult, error)

func claimHandler(app App, claim claimFunc, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		raw, err := bindObject(c)
		if err != nil {
			HandleError(c, app.Logger(), err, "Invalid JSON")
			return
		}
		req, err := service.ParseClaimRequest(raw)
		if err != nil {
			HandleError(c, app.Logger(), err, "Validation failed")
			return
		}

		result, err := claim(c.Request.Context(), user.ID, req)
		if err != nil {
			HandleError(c, app.Logger(), err, msg)
			return
		}
		HandleSuccess(c, app.Logger(), result, nil)
	}
}

func GetStatus(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		status, err := app.Rewards().Status(c.Request.Context(), user.ID)
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to fetch status")
			return
		}
		HandleSuccess(c, app.Logger(), status, nil)
	}
}
