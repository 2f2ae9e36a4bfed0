package controller

import (
	"log/slog"
	"net/http"
	"strings"

	"ghcnd-server/internal/utils"
)

func (c *stationsControllerImpl) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearchQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, err := c.service.Search(r.Context(), q)
	if err != nil {
		writeServiceError(w, "search stations", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.EmptyIfNil(matches))
}

func (c *stationsControllerImpl) handleFindByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing station name")
		return
	}

	stations, err := c.service.FindByName(r.Context(), name)
	if err != nil {
		writeServiceError(w, "find stations by name", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.EmptyIfNil(stations))
}

type reloadResponse struct {
	Status   string `json:"status"`
	Stations int    `json:"stations"`
}

func (c *stationsControllerImpl) handleReload(w http.ResponseWriter, r *http.Request) {
	n, err := c.service.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, "reload stations", err)
		return
	}
	slog.Info("stations reloaded", "stations", n)
	utils.WriteJSON(w, http.StatusOK, reloadResponse{Status: "ok", Stations: n})
}

