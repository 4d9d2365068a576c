// Package httperrors translates domain error codes into HTTP responses so the
// transport layer stays free of business logic.
package httperrors

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "relaydesk/pkg/domain-errors"
)

// ToHTTPStatus maps a stable domain code onto an HTTP status code.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized, dErrors.CodeAuthRejected:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeChannelInUse, dErrors.CodeTerminalState:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable, dErrors.CodeConnectionFailed:
		return http.StatusServiceUnavailable
	case dErrors.CodeCloseFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON error envelope returned by every handler.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError renders any error as a consistent JSON envelope. Unknown errors
// map to 500 with the generic internal code so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := ErrorBody{Code: string(dErrors.CodeInternal), Message: "internal error"}

	var de *dErrors.Error
	if errors.As(err, &de) {
		status = ToHTTPStatus(de.Code)
		body = ErrorBody{Code: string(de.Code), Message: de.Error()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
