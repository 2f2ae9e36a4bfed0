package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"ghcnd-server/internal/ghcn"
	"ghcnd-server/internal/modules/weather/aggregate"
	"ghcnd-server/internal/utils"
)

func (c *weatherControllerImpl) handleData(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	interval := r.PathValue("interval")
	q := r.URL.Query()

	rows, err := c.service.GetWeatherData(r.Context(), id, strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end")), interval)
	if err != nil {
		writeServiceError(w, id, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.EmptyIfNil(rows))
}

func writeServiceError(w http.ResponseWriter, stationID string, err error) {
	switch {
	case errors.Is(err, aggregate.ErrUnsupportedGranularity),
		errors.Is(err, aggregate.ErrInvalidDate),
		errors.Is(err, ghcn.ErrInvalidStationID):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ghcn.ErrStationNotFound):
		utils.WriteError(w, http.StatusNotFound, "no data for station "+stationID)
	case errors.Is(err, ghcn.ErrSourceUnavailable):
		slog.Warn("weather data: archive unavailable", "station_id", stationID, "error", err)
		utils.WriteError(w, http.StatusBadGateway, "weather archive unavailable")
	default:
		slog.Error("weather data failed", "station_id", stationID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load weather data")
	}
}
