package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"ghcnd-server/internal/ghcn"
	"ghcnd-server/internal/modules/stations/service"
	"ghcnd-server/internal/modules/stations/types"
	"ghcnd-server/internal/utils"
)

func parseSearchQuery(r *http.Request) (types.SearchQuery, error) {
	q := r.URL.Query()
	var (
		out types.SearchQuery
		err error
	)

	if out.Latitude, err = requiredFloat(q.Get("latitude"), "latitude"); err != nil {
		return types.SearchQuery{}, err
	}
	if out.Longitude, err = requiredFloat(q.Get("longitude"), "longitude"); err != nil {
		return types.SearchQuery{}, err
	}
	if out.RadiusKm, err = requiredFloat(q.Get("radius"), "radius"); err != nil {
		return types.SearchQuery{}, err
	}
	if out.StartYear, err = optionalInt(q.Get("start"), "start"); err != nil {
		return types.SearchQuery{}, err
	}
	if out.EndYear, err = optionalInt(q.Get("end"), "end"); err != nil {
		return types.SearchQuery{}, err
	}
	if out.Limit, err = optionalInt(q.Get("selection"), "selection"); err != nil {
		return types.SearchQuery{}, err
	}
	return out, nil
}

func requiredFloat(s, name string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing '%s'", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid '%s' (expected number)", name)
	}
	return v, nil
}

func optionalInt(s, name string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid '%s' (expected integer)", name)
	}
	return &v, nil
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ghcn.ErrSourceUnavailable):
		slog.Warn(op+" failed", "error", err)
		utils.WriteError(w, http.StatusBadGateway, "station catalog source unavailable")
	default:
		slog.Error(op+" failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to "+op)
	}
}
