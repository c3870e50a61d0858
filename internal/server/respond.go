package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/photo-pipeline/internal/async"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http.response.encode_error", "error", err)
	}
}

// statusFor maps application errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, async.ErrQueueClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("http.request.failed", "method", r.Method, "path", r.URL.Path,
			"req_id", common.RequestIDFromContext(r.Context()), "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg, Code: common.CodeOf(err)})
}
