package shared

import (
	"errors"
	"net/http"

	"regdesk/internal/transport/http/json"
	dErrors "regdesk/pkg/domain-errors"
)

// WriteError centralizes domain error translation to HTTP responses. Domain
// codes map to statuses here and nowhere else; handlers and middleware pass
// coded errors through untouched.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		response := map[string]string{
			"error": string(domainErr.Code),
		}
		// Internal details stay in the log, not the response body.
		if domainErr.Message != "" && domainErr.Code != dErrors.CodeInternal {
			response["error_description"] = domainErr.Message
		}
		json.WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), response)
		return
	}

	json.WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": string(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
// Session verification failures (missing, expired, second factor pending) all
// land on 401 so the response shape never reveals which one occurred.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized, dErrors.CodeExpired, dErrors.CodeSecondFactorRequired:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeInvalidToken:
		return http.StatusForbidden
	case dErrors.CodeRateLimited, dErrors.CodeTooManyAttempts:
		return http.StatusTooManyRequests
	case dErrors.CodeDeliveryFailure:
		return http.StatusBadGateway
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
