package api

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetBalance(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		balance, err := app.Rewards().Balance(c.Request.Context(), user.ID)
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to fetch balance")
			return
		}
		HandleSuccess(c, app.Logger(), balance, nil)
	}
}

func GetHistory(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		limit, err1 := strconv.Atoi(c.DefaultQuery("limit", "0"))
		offset, err2 := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if err1 != nil || err2 != nil {
			HandleError(c, app.Logger(), fmt.Errorf("%w: limit and offset must be integers", errInvalidRequest), "Invalid paging parameters")
			return
		}

		page, err := app.Rewards().History(c.Request.Context(), user.ID, limit, offset)
		if err != nil {
			HandleError(c, app.Logger(), err, "Failed to fetch history")
			return
		}
		HandleSuccess(c, app.Logger(), page.Items, map[string]any{
			"total":  page.Total,
			"limit":  page.Limit,
			"offset": page.Offset,
		})
	}
}
