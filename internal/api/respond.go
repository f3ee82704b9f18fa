package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.ErrorContext(r.Context(), "encode response",
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.Any("err", err))
	}
}

// respondError maps err to a status. Server errors are logged with the
// operation name and never echoed to the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	message := err.Error()

	attrs := []any{
		slog.String("request_id", requestIDFrom(r.Context())),
		slog.String("op", op),
		slog.Int("status", status),
		slog.Any("err", err),
	}

	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed", attrs...)
		message = "internal server error"
	} else {
		s.log.DebugContext(r.Context(), "request rejected", attrs...)
	}

	s.writeJSON(w, r, status, messageResponse{Message: message})
}
