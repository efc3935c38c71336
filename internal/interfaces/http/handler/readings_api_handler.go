package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/internal/application/usecase"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/repository"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

// ReadingsAPIHandler обслуживает API наблюдений: /api/latest, /api/recent, /api/hourly-avg
// и прием новых наблюдений от датчиков
type ReadingsAPIHandler struct {
	getReadingsUC   *usecase.GetReadingsUseCase
	recordReadingUC *usecase.RecordReadingUseCase
	logger          *logger.Logger
}

// NewReadingsAPIHandler создает новый handler; recordReadingUC может быть nil,
// если источник наблюдений только для чтения
func NewReadingsAPIHandler(
	getReadingsUC *usecase.GetReadingsUseCase,
	recordReadingUC *usecase.RecordReadingUseCase,
	logger *logger.Logger,
) *ReadingsAPIHandler {
	return &ReadingsAPIHandler{
		getReadingsUC:   getReadingsUC,
		recordReadingUC: recordReadingUC,
		logger:          logger,
	}
}

// Latest возвращает самое свежее наблюдение, 404 если данных нет
func (h *ReadingsAPIHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	reading, err := h.getReadingsUC.Latest(r.Context())
	if errors.Is(err, repository.ErrNoReadings) {
		writeError(w, http.StatusNotFound, "no data available", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("Failed to get latest reading", err)
		writeError(w, http.StatusInternalServerError, "database error: "+err.Error(), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, reading, h.logger)
}

// Recent возвращает n последних наблюдений (параметр n, по умолчанию 50)
func (h *ReadingsAPIHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	n := repository.DefaultRecentLimit
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid parameter n", h.logger)
			return
		}
		n = parsed
	}

	readings, err := h.getReadingsUC.Recent(r.Context(), n)
	if err != nil {
		h.logger.Error("Failed to get recent readings", err)
		writeError(w, http.StatusInternalServerError, "database error: "+err.Error(), h.logger)
		return
	}
	if readings == nil {
		readings = []*dto.SampleDTO{}
	}

	writeJSON(w, http.StatusOK, readings, h.logger)
}

// HourlyAverages возвращает часовые средние за последние 24 часа
func (h *ReadingsAPIHandler) HourlyAverages(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	averages, err := h.getReadingsUC.HourlyAverages(r.Context())
	if err != nil {
		h.logger.Error("Failed to get hourly averages", err)
		writeError(w, http.StatusInternalServerError, "database error: "+err.Error(), h.logger)
		return
	}
	if averages == nil {
		averages = []*dto.HourlyAverageDTO{}
	}

	writeJSON(w, http.StatusOK, averages, h.logger)
}

// Record принимает новое наблюдение от датчика
func (h *ReadingsAPIHandler) Record(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	if h.recordReadingUC == nil {
		writeError(w, http.StatusNotImplemented, "readings source is read-only", h.logger)
		return
	}

	var reading dto.SampleDTO
	if err := decodeJSON(r, w, &reading); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), h.logger)
		return
	}

	if err := h.recordReadingUC.Execute(r.Context(), &reading); err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			writeError(w, status, "failed to save reading", h.logger)
			return
		}
		writeError(w, status, err.Error(), h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"}, h.logger)
}
