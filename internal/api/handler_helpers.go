package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bbh1312/sleep-cash-backend/internal"
	"github.com/bbh1312/sleep-cash-backend/internal/response"
	"github.com/bbh1312/sleep-cash-backend/internal/service"
)

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrActiveSessionExists, http.StatusConflict, "ACTIVE_SESSION_EXISTS"},
	{service.ErrNoActiveSession, http.StatusConflict, "NO_ACTIVE_SESSION"},
	{service.ErrIntermediateLimitReached, http.StatusConflict, "INTERMEDIATE_LIMIT_REACHED"},
	{service.ErrDailyLimitExceeded, http.StatusConflict, "DAILY_LIMIT_EXCEEDED"},
	{service.ErrNoPointsToClaim, http.StatusBadRequest, "NO_POINTS_TO_CLAIM"},
	{service.ErrSessionAlreadyEnded, http.StatusConflict, "SESSION_ALREADY_ENDED"},
	{service.ErrSessionNotRunning, http.StatusConflict, "SESSION_NOT_RUNNING"},
	{service.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
	{service.ErrInvalidVolume, http.StatusBadRequest, "INVALID_VOLUME"},
	{service.ErrInvalidSettings, http.StatusBadRequest, "INVALID_SETTINGS"},
	{service.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{service.ErrInvalidSessionID, http.StatusBadRequest, "INVALID_REQUEST"},
	{service.ErrAccrualNotPlausible, http.StatusBadRequest, "ACCRUAL_NOT_PLAUSIBLE"},
	{service.ErrClaimConflict, http.StatusConflict, "CLAIM_CONFLICT"},
	{service.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
}

var errInvalidRequest = errors.New("invalid request")

// toAppError maps service errors to their wire form. Anything unknown is an
// internal error and its message is not leaked.
func toAppError(err error) *internal.AppError {
	if errors.Is(err, errInvalidRequest) {
		return internal.NewCodedError(http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	}
	for _, e := range errorCodes {
		if !errors.Is(err, e.err) {
			continue
		}
		appErr := internal.NewCodedError(e.status, e.code, err.Error())
		var limitErr *service.DailyLimitError
		if errors.As(err, &limitErr) {
			appErr.WithDetail("available", limitErr.Available).
				WithDetail("requested", limitErr.Requested).
				WithDetail("daily_limit", limitErr.DailyLimit)
		}
		var settingsErr *service.SettingsError
		if errors.As(err, &settingsErr) {
			appErr.WithDetail("field", settingsErr.Field)
		}
		return appErr
	}
	return internal.NewCodedError(http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

func HandleError(c *gin.Context, logger internal.Logger, err error, msg string) {
	requestID := c.GetString("request_id")
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
	} else {
		logger.Infof("[request_id=%s] %s: %s", requestID, msg, appErr.Code)
	}
	c.JSON(appErr.Status, response.Failure(appErr))
}

func HandleSuccess(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	respond(c, logger, http.StatusOK, data, meta)
}

func HandleCreated(c *gin.Context, logger internal.Logger, data interface{}) {
	respond(c, logger, http.StatusCreated, data, nil)
}

func respond(c *gin.Context, logger internal.Logger, status int, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Debugf("[request_id=%s] Success", requestID)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["request_id"] = requestID
	c.JSON(status, response.Success(data, meta))
}

// bindObject decodes an optional JSON object body. An empty body yields an
// empty map.
func bindObject(c *gin.Context) (map[string]json.RawMessage, error) {
	raw := map[string]json.RawMessage{}
	if c.Request.Body == nil {
		return raw, nil
	}
	if err := json.NewDecoder(c.Request.Body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("%w: body must be a JSON object", errInvalidRequest)
	}
	if raw == nil {
		raw = map[string]json.RawMessage{}
	}
	return raw, nil
}

func currentUser(c *gin.Context) *internal.User {
	return c.MustGet("user").(*internal.User)
}
