package errs

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// ErrorResponse is the body written for failed HTTP requests.
type ErrorResponse struct {
	Error ServiceError `json:"error"`
}

type ServiceError struct {
	Kind      string `json:"kind"`
	Param     string `json:"param,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// RequestIDHeader carries the request ID set by the transport layer.
const RequestIDHeader = "X-Request-Id"

// HTTPErrorResponse logs err and writes it to w as JSON, with a status code
// derived from the error kind.
func HTTPErrorResponse(w http.ResponseWriter, logger zerolog.Logger, err error) {
	if err == nil {
		logger.Error().Msg("HTTPErrorResponse called with nil error")
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	kind := KindOf(err)
	code := httpStatusCode(kind)

	param := ParamOf(err)
	requestID := w.Header().Get(RequestIDHeader)

	logger.Error().
		Err(err).
		Str("kind", kind.String()).
		Str("request_id", requestID).
		Strs("stack", OpStack(err)).
		Int("status", code).
		Msg("request failed")

	message := err.Error()
	if kind == Internal || kind == Other {
		message = http.StatusText(code)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	encErr := json.NewEncoder(w).Encode(ErrorResponse{
		Error: ServiceError{
			Kind:      kind.String(),
			Param:     string(param),
			Message:   message,
			RequestID: requestID,
		},
	})
	if encErr != nil {
		logger.Error().Err(encErr).Msg("encoding error response")
	}
}

func httpStatusCode(kind Kind) int {
	switch kind {
	case Invalid, InvalidRequest, Schema, SchemaMismatch, Decode:
		return http.StatusBadRequest
	case NotExist:
		return http.StatusNotFound
	case Unauthenticated:
		return http.StatusUnauthorized
	case IO:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
