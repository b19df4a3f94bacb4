package handlers

import (
	"net/http"

	"github.com/geocoder89/accounthub/internal/service"
	"github.com/gin-gonic/gin"
)

// Envelope is the uniform response shape. success mirrors the status
// code so clients can branch without inspecting it.
type Envelope struct {
	StatusCode int      `json:"statusCode"`
	Data       any      `json:"data,omitempty"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors,omitempty"`
}

func Respond(ctx *gin.Context, status int, data any, message string) {
	ctx.JSON(status, Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// RespondAppError is the single boundary where a service error becomes
// a transport response. Nothing below the handlers writes HTTP.
func RespondAppError(ctx *gin.Context, appErr *service.Error) {
	errs := appErr.Errors

	if errs == nil {
		errs = []string{}
	}

	ctx.JSON(appErr.Status, Envelope{
		StatusCode: appErr.Status,
		Message:    appErr.Message,
		Success:    false,
		Errors:     errs,
	})
}

func RespondBadRequest(ctx *gin.Context, message string, fieldErrors []string) {
	RespondAppError(ctx, service.BadRequest(message, fieldErrors...))
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondAppError(ctx, service.Unauthorized(code, message))
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondAppError(ctx, service.Internal(message))
}
