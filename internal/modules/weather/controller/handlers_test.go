package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"weather-subscriber/internal/modules/weather/service"
	"weather-subscriber/internal/modules/weather/store"
	"weather-subscriber/internal/modules/weather/types"
)

type mockSource struct {
	snap  types.Snapshot
	stats service.Stats
}

func (m *mockSource) Snapshot() types.Snapshot { return m.snap }

func (m *mockSource) Stats() service.Stats { return m.stats }

func ptr(v float64) *float64 { return &v }

func serve(t *testing.T, src Source) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewWeatherController(src).RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil))
	return rec
}

func Test_handleSnapshot(t *testing.T) {
	t.Run("with valid data", func(t *testing.T) {
		src := &mockSource{
			snap: store.Compute([]types.Reading{
				{StationID: "WS-01", Temperature: ptr(20), Humidity: ptr(50)},
				{StationID: "WS-02", Temperature: ptr(-999), Humidity: ptr(40)},
				{StationID: "WS-01", Temperature: ptr(22), Humidity: ptr(55)},
			}),
			stats: service.Stats{Received: 4, Appended: 3, Dropped: 1},
		}
		rec := serve(t, src)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want 200", rec.Code)
		}
		var body struct {
			Count       int                     `json:"count"`
			Valid       int                     `json:"valid"`
			Faults      int                     `json:"faults"`
			Stations    []string                `json:"stations"`
			Temperature *types.TemperatureStats `json:"temperature"`
			Humidity    *float64                `json:"meanHumidity"`
			Ingestion   service.Stats           `json:"ingestion"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Count != 3 || body.Valid != 2 || body.Faults != 1 {
			t.Errorf("counts = %d/%d/%d; want 3/2/1", body.Count, body.Valid, body.Faults)
		}
		if len(body.Stations) != 2 || body.Stations[0] != "WS-01" || body.Stations[1] != "WS-02" {
			t.Errorf("stations = %v", body.Stations)
		}
		if body.Temperature == nil || body.Temperature.Mean != 21 {
			t.Errorf("temperature = %+v", body.Temperature)
		}
		if body.Humidity == nil || *body.Humidity != 52.5 {
			t.Errorf("meanHumidity = %v", body.Humidity)
		}
		if body.Ingestion.Dropped != 1 || body.Ingestion.Appended != 3 {
			t.Errorf("ingestion = %+v", body.Ingestion)
		}
	})

	t.Run("empty log omits aggregates", func(t *testing.T) {
		rec := serve(t, &mockSource{snap: store.Compute(nil)})

		var body map[string]json.RawMessage
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if _, ok := body["temperature"]; ok {
			t.Error("temperature present for empty log")
		}
		if _, ok := body["meanHumidity"]; ok {
			t.Error("meanHumidity present for empty log")
		}
		if string(body["stations"]) != "[]" {
			t.Errorf("stations = %s; want []", body["stations"])
		}
	})
}
