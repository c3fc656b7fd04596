package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"safety-stories-service/internal/domain"
	"safety-stories-service/internal/logger"
)

var (
	errUnauthorized = errors.New("missing or invalid bearer token")
	errForbidden    = errors.New("token subject does not match user")
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusFor maps an error to its HTTP status and envelope kind.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "Forbidden"
	}
	kind := domain.KindOf(err)
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound, string(kind)
	case domain.KindValidation, domain.KindOutOfRange:
		return http.StatusBadRequest, string(kind)
	case domain.KindInvalidGraph:
		return http.StatusUnprocessableEntity, string(kind)
	case domain.KindConflict:
		return http.StatusConflict, string(kind)
	case domain.KindTimeout:
		return http.StatusGatewayTimeout, string(kind)
	default:
		return http.StatusInternalServerError, string(domain.KindInternal)
	}
}

func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status, kind := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("unhandled error", "error", err)
		msg = "internal server error"
	}
	writeJSON(w, log, status, errorBody{Error: errorDetail{Kind: kind, Message: msg}})
}

func writeJSON(w http.ResponseWriter, log *logger.Logger, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("marshal response failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"kind":"Internal","message":"internal server error"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
