package service

import "net/http"

// Error is the status-coded application error every operation returns.
// Handlers convert it into the transport envelope at a single boundary;
// nothing below the handlers writes HTTP responses.
type Error struct {
	Status  int      `json:"statusCode"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func BadRequest(message string, fieldErrors ...string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "invalid_request", Message: message, Errors: fieldErrors}
}

func Unauthorized(code, message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: code, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: "not_found", Message: message}
}

func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Code: "conflict", Message: message}
}

func UploadFailed(message string) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "upload_failed", Message: message}
}

func Internal(message string) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "internal_error", Message: message}
}

// Codes used by the session manager's refresh path. token_reuse is the
// rotation check failing on a cryptographically valid token: it was
// already consumed or forged.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidToken       = "invalid_token"
	CodeTokenReuse         = "token_reuse"
	CodeMissingToken       = "missing_token"
)
