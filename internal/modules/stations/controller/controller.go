package controller

import (
	"context"
	"net/http"

	"ghcnd-server/internal/modules/stations/types"
)

// StationService is the part of the stations service the HTTP layer needs.
type StationService interface {
	Search(ctx context.Context, q types.SearchQuery) ([]types.Match, error)
	FindByName(ctx context.Context, substring string) ([]types.Station, error)
	Refresh(ctx context.Context) (int, error)
}

type StationsController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type stationsControllerImpl struct {
	service StationService
}

func NewStationsController(service StationService) StationsController {
	return &stationsControllerImpl{service: service}
}

func (c *stationsControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /stations", c.handleSearch)
	mux.HandleFunc("GET /stations/{name}", c.handleFindByName)
	mux.HandleFunc("GET /reload_stations", c.handleReload)
}
