package stations

import (
	"net/http"

	"ghcnd-server/internal/modules/stations/controller"
)

func RegisterFeature(mux *http.ServeMux, service controller.StationService) {
	stationsController := controller.NewStationsController(service)
	stationsController.RegisterRoutes(mux)
}
