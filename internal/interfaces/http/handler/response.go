package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/repository"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

// maxBodyBytes ограничение размера тела запроса
const maxBodyBytes = 1 << 20

// errorResponse тело ответа с ошибкой: {"error": "..."}
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to encode response", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, log *logger.Logger) {
	writeJSON(w, status, errorResponse{Error: message}, log)
}

// statusForError переводит доменные ошибки в HTTP статус
func statusForError(err error) int {
	switch {
	case errors.Is(err, valueobject.ErrInvalidParameter),
		errors.Is(err, valueobject.ErrLengthMismatch):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNoReadings):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON читает тело запроса; неизвестные поля и лишние данные считаются ошибкой
func decodeJSON(r *http.Request, w http.ResponseWriter, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	for _, m := range methods {
		w.Header().Add("Allow", m)
	}
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}
