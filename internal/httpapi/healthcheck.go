package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"

	"weather-subscriber/internal/modules/weather/types"
	"weather-subscriber/internal/mqtt"
	"weather-subscriber/internal/render"
)

// ConnectionStater reports the broker connection state.
type ConnectionStater interface {
	State() mqtt.State
}

// SnapshotSource returns the current aggregate snapshot.
type SnapshotSource interface {
	Snapshot() types.Snapshot
}

// Deps are the collaborators behind /healthz. DB is nil when readings are
// persisted to a file.
type Deps struct {
	DB       *sql.DB
	MQTT     ConnectionStater
	Readings SnapshotSource
}

type healthResponse struct {
	Status   string `json:"status"`
	MQTT     string `json:"mqtt"`
	Readings int    `json:"readings"`
}

type healthchecker struct {
	deps Deps
}

func (h *healthchecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.deps.DB != nil {
		var ok int
		if err := h.deps.DB.QueryRowContext(r.Context(), `SELECT 1`).Scan(&ok); err != nil {
			slog.Error("failed to check database connectivity", "error", err)
			render.Error(w, http.StatusInternalServerError, "failed to check database connectivity")
			return
		}
	}

	resp := healthResponse{Status: "ok", MQTT: mqtt.StateDisconnected.String()}
	if h.deps.MQTT != nil {
		resp.MQTT = h.deps.MQTT.State().String()
	}
	if h.deps.Readings != nil {
		resp.Readings = h.deps.Readings.Snapshot().Count
	}
	render.JSON(w, http.StatusOK, resp)
}

func registerHealthcheck(mux *http.ServeMux, deps Deps) {
	h := &healthchecker{deps: deps}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
