package response

import "github.com/bbh1312/sleep-cash-backend/internal"

type APIResponse struct {
	Data  interface{}        `json:"data,omitempty"`
	Meta  map[string]any     `json:"meta,omitempty"`
	Error *internal.AppError `json:"error,omitempty"`
}

func Success(data interface{}, meta map[string]any) APIResponse {
	return APIResponse{Data: data, Meta: meta, Error: nil}
}

func Failure(err *internal.AppError) APIResponse {
	return APIResponse{Error: err}
}

func BadRequest(code, msg string) APIResponse {
	return Failure(internal.NewCodedError(400, code, msg))
}

func Unauthorized(msg string) APIResponse {
	return Failure(internal.NewCodedError(401, "UNAUTHORIZED", msg))
}

func NotFound(code, msg string) APIResponse {
	return Failure(internal.NewCodedError(404, code, msg))
}

func InternalError(msg string) APIResponse {
	return Failure(internal.NewCodedError(500, "INTERNAL_ERROR", msg))
}
