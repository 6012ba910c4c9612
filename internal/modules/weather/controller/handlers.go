package controller

import (
	"net/http"

	"weather-subscriber/internal/modules/weather/service"
	"weather-subscriber/internal/modules/weather/types"
	"weather-subscriber/internal/render"
)

type snapshotResponse struct {
	types.Snapshot
	Ingestion service.Stats `json:"ingestion"`
}

func (c *weatherControllerImpl) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	render.JSON(w, http.StatusOK, snapshotResponse{
		Snapshot:  c.source.Snapshot(),
		Ingestion: c.source.Stats(),
	})
}
