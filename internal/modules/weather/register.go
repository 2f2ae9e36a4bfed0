package weather

import (
	"log/slog"
	"net/http"

	"ghcnd-server/internal/modules/weather/controller"
	"ghcnd-server/internal/modules/weather/service"
)

func RegisterFeature(mux *http.ServeMux, fetcher service.SeriesFetcher, logger *slog.Logger) {
	weatherService := service.NewService(fetcher, logger)
	weatherController := controller.NewWeatherController(weatherService)
	weatherController.RegisterRoutes(mux)
}
