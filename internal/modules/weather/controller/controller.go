package controller

import (
	"context"
	"net/http"

	"ghcnd-server/internal/modules/weather/types"
)

type WeatherService interface {
	GetWeatherData(ctx context.Context, stationID, start, end, granularity string) ([]types.Row, error)
}

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type weatherControllerImpl struct {
	service WeatherService
}

func NewWeatherController(service WeatherService) WeatherController {
	return &weatherControllerImpl{service: service}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /data/{id}/{interval}", c.handleData)
}
