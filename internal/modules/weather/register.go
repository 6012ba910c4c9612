package weather

import (
	"net/http"

	"weather-subscriber/internal/modules/weather/controller"
)

// RegisterFeature mounts the weather reporting routes on mux.
func RegisterFeature(mux *http.ServeMux, source controller.Source) {
	weatherController := controller.NewWeatherController(source)
	weatherController.RegisterRoutes(mux)
}
