package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/siherrmann/archivist/model"
)

// ErrBadRequest marks malformed request parameters.
var ErrBadRequest = errors.New("bad request")

type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrAmbiguousMatch):
		return http.StatusNotFound
	case errors.Is(err, model.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// messageFor hides internal errors from clients.
func messageFor(err error, status int) string {
	switch {
	case errors.Is(err, model.ErrAmbiguousMatch):
		return "multiple objects matched the lookup"
	case errors.Is(err, model.ErrNotFound):
		return "no object matched the lookup"
	case status == http.StatusInternalServerError:
		return http.StatusText(status)
	}
	return err.Error()
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	writeJSON(w, status, errorResponse{Error: messageFor(err, status), Status: status})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
