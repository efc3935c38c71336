package handler

import (
	"net/http"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/internal/application/usecase"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

// TelemetryAPIHandler обслуживает состояние сессии: серии, настройки, режим реального времени
type TelemetryAPIHandler struct {
	getSeriesUC      *usecase.GetSeriesUseCase
	updateSettingsUC *usecase.UpdateSettingsUseCase
	pollLatestUC     *usecase.PollLatestUseCase
	refreshHistoryUC *usecase.RefreshHistoryUseCase
	logger           *logger.Logger
}

// NewTelemetryAPIHandler создает новый handler
func NewTelemetryAPIHandler(
	getSeriesUC *usecase.GetSeriesUseCase,
	updateSettingsUC *usecase.UpdateSettingsUseCase,
	pollLatestUC *usecase.PollLatestUseCase,
	refreshHistoryUC *usecase.RefreshHistoryUseCase,
	logger *logger.Logger,
) *TelemetryAPIHandler {
	return &TelemetryAPIHandler{
		getSeriesUC:      getSeriesUC,
		updateSettingsUC: updateSettingsUC,
		pollLatestUC:     pollLatestUC,
		refreshHistoryUC: refreshHistoryUC,
		logger:           logger,
	}
}

// realtimeRequest тело POST /api/v1/realtime
type realtimeRequest struct {
	Enabled *bool `json:"enabled"`
}

type realtimeResponse struct {
	Enabled bool `json:"enabled"`
}

// refreshResponse результат ручной полной загрузки
type refreshResponse struct {
	Samples int  `json:"samples"`
	Points  int  `json:"points"`
	Hours   int  `json:"hours"`
	Changed bool `json:"changed"`
}

// Series возвращает snapshot сессии, опционально по одной метрике (?metric=co2)
func (h *TelemetryAPIHandler) Series(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	snapshot, err := h.getSeriesUC.Execute(r.URL.Query().Get("metric"))
	if err != nil {
		writeError(w, statusForError(err), err.Error(), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, snapshot, h.logger)
}

// Settings возвращает (GET) или заменяет (PUT) сглаживание и правила
func (h *TelemetryAPIHandler) Settings(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPut) {
		return
	}

	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, h.updateSettingsUC.Current(), h.logger)
		return
	}

	var settings dto.SettingsDTO
	if err := decodeJSON(r, w, &settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), h.logger)
		return
	}

	applied, err := h.updateSettingsUC.Execute(r.Context(), &settings)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to update settings", err)
		}
		writeError(w, status, err.Error(), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, applied, h.logger)
}

// Realtime возвращает (GET) или переключает (POST) опрос последних наблюдений
func (h *TelemetryAPIHandler) Realtime(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodPost {
		var req realtimeRequest
		if err := decodeJSON(r, w, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), h.logger)
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "field enabled is required", h.logger)
			return
		}
		h.pollLatestUC.SetEnabled(*req.Enabled)
	}

	writeJSON(w, http.StatusOK, realtimeResponse{Enabled: h.pollLatestUC.Enabled()}, h.logger)
}

// Refresh немедленно выполняет полную загрузку истории
func (h *TelemetryAPIHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	result, err := h.refreshHistoryUC.Execute(r.Context())
	if err != nil {
		h.logger.Error("Manual refresh failed", err)
		writeError(w, http.StatusBadGateway, "refresh failed: "+err.Error(), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Samples: result.Samples,
		Points:  result.Points,
		Hours:   result.Hours,
		Changed: result.Changed,
	}, h.logger)
}
