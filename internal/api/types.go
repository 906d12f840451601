package api

import "net/http"

// APIError represents RESTful error response structure
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Machine-checkable error codes carried on every error response.
const (
	ErrorCodeValidation             = "VALIDATION_ERROR"
	ErrorCodeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
	ErrorCodeMalformedPEM           = "MALFORMED_PEM"
	ErrorCodeContainerDecomposition = "CONTAINER_DECOMPOSITION_FAILED"
	ErrorCodeCredentialWrite        = "CREDENTIAL_WRITE_ERROR"
	ErrorCodeRemoteCall             = "REMOTE_CALL_ERROR"
	ErrorCodeRecordNotFound         = "RECORD_NOT_FOUND"
	ErrorCodeInternalError          = "INTERNAL_ERROR"
)

// StatusForCode maps an error code to its HTTP status.
func StatusForCode(code string) int {
	switch code {
	case ErrorCodeValidation, ErrorCodeMalformedPEM, ErrorCodeContainerDecomposition:
		return http.StatusBadRequest
	case ErrorCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorCodeRecordNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
