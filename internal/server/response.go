package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
)

// Envelope provides a consistent JSON response structure.
type Envelope struct {
	Data    any           `json:"data,omitempty"`
	Error   *errors.Error `json:"error,omitempty"`
	Success bool          `json:"success"`
}

// writeJSON writes data wrapped in an envelope with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(Envelope{Success: status < 400, Data: data}); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func success(w http.ResponseWriter, data any, logger *slog.Logger) {
	writeJSON(w, http.StatusOK, data, logger)
}

func created(w http.ResponseWriter, data any, logger *slog.Logger) {
	writeJSON(w, http.StatusCreated, data, logger)
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeError answers with the status of err's code. Internal causes are
// logged, never sent.
func writeError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var e *errors.Error
	if !errors.As(err, &e) {
		logger.Error("unhandled error", "error", err)
		e = errors.ErrInternal
	} else if e.Code == errors.CodeInternal {
		logger.Error("internal error", "error", err)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.HTTPStatus())

	body := Envelope{Error: &errors.Error{Code: e.Code, Message: e.Message, Details: e.Details}}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode error response", "error", err)
	}
}

// decodeBody reads a JSON request body of at most maxBody bytes into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Validation("invalid JSON body").WithCause(err)
	}
	return nil
}

const maxBody = 1 << 20
