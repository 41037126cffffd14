package server

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/pkg/logging"
	"github.com/rushteam/grocerec/pkg/metrics"
)

// ErrorBody 是错误响应体：{"error": {"code": "...", "message": "..."}}。
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("write response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := core.ErrorCodeInternalError
	message := "internal error"
	if de := core.GetDomainError(err); de != nil {
		code = de.Code
		message = de.Message
	}

	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		logging.Error().Err(err).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	respondJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func statusFor(code string) int {
	switch code {
	case core.ErrorCodeNotFound:
		return http.StatusNotFound
	case core.ErrorCodeInvalidInput:
		return http.StatusBadRequest
	case core.ErrorCodeNotSupported:
		return http.StatusNotImplemented
	case core.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func outcome(err error) string {
	switch {
	case core.IsNotFound(err):
		return metrics.OutcomeNotFound
	case core.IsInvalidInput(err):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
