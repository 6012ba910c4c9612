package controller

import (
	"net/http"

	"weather-subscriber/internal/modules/weather/service"
	"weather-subscriber/internal/modules/weather/types"
)

// Source exposes the live aggregates and ingestion counters.
type Source interface {
	Snapshot() types.Snapshot
	Stats() service.Stats
}

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type weatherControllerImpl struct {
	source Source
}

func NewWeatherController(source Source) WeatherController {
	return &weatherControllerImpl{source: source}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/snapshot", c.handleSnapshot)
}
