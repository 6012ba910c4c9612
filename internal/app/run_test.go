package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"weather-subscriber/internal/config"
	"weather-subscriber/internal/modules/weather/store"
	"weather-subscriber/internal/modules/weather/types"

	_ "github.com/mattn/go-sqlite3"
)

func init() {
	mqttConnectTimeout = 100 * time.Millisecond
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		AppEnv:             "dev",
		LogLevel:           slog.LevelInfo,
		HTTPAddr:           "127.0.0.1:0",
		MQTTBroker:         "127.0.0.1",
		MQTTPort:           1, // nothing listens here
		MQTTTopic:          "weather",
		MQTTClientID:       "app-test",
		SnapshotInterval:   10,
		PersistenceBackend: config.BackendFile,
		DataFile:           filepath.Join(dir, "weather_data.json"),
		SQLitePath:         filepath.Join(dir, "weather_data.db"),
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func runFor(t *testing.T, cfg config.Config, d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, discard()) }()
	select {
	case err := <-done:
		return err
	case <-time.After(d + 15*time.Second):
		t.Fatal("Run did not return after cancellation")
		return nil
	}
}

func TestRun_FileBackendPersistsOnShutdown(t *testing.T) {
	cfg := testConfig(t)
	prior := `[
  {"stationId": "WS-01", "temperature": 20, "humidity": 50, "timestamp": "t1"},
  {"stationId": "WS-02", "temperature": -999, "humidity": 40, "timestamp": "t2", "battery": 3.7}
]`
	if err := os.WriteFile(cfg.DataFile, []byte(prior), 0o644); err != nil {
		t.Fatalf("seed data file: %v", err)
	}

	err := runFor(t, cfg, 300*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v; want context deadline exceeded", err)
	}

	data, err := os.ReadFile(cfg.DataFile)
	if err != nil {
		t.Fatalf("read data file: %v", err)
	}
	st, err := store.Load(data)
	if err != nil {
		t.Fatalf("persisted log does not load: %v", err)
	}
	readings := st.Readings()
	if len(readings) != 2 || readings[0].StationID != "WS-01" || readings[1].StationID != "WS-02" {
		t.Fatalf("persisted readings = %+v", readings)
	}
	if string(readings[1].Extra["battery"]) != "3.7" {
		t.Errorf("extra field lost: %v", readings[1].Extra)
	}
}

func TestRun_EmptyStartWritesEmptyLog(t *testing.T) {
	cfg := testConfig(t)

	_ = runFor(t, cfg, 200*time.Millisecond)

	data, err := os.ReadFile(cfg.DataFile)
	if err != nil {
		t.Fatalf("read data file: %v", err)
	}
	var readings []types.Reading
	if err := json.Unmarshal(data, &readings); err != nil {
		t.Fatalf("data file is not a JSON array: %v", err)
	}
	if len(readings) != 0 {
		t.Errorf("readings = %d; want 0", len(readings))
	}
}

func TestRun_MalformedLogIsFatal(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.DataFile, []byte(`[{"stationId": "WS-01"`), 0o644); err != nil {
		t.Fatalf("seed data file: %v", err)
	}

	err := runFor(t, cfg, 5*time.Second)
	if !errors.Is(err, store.ErrMalformedLog) {
		t.Fatalf("Run = %v; want ErrMalformedLog", err)
	}

	data, _ := os.ReadFile(cfg.DataFile)
	if string(data) != `[{"stationId": "WS-01"` {
		t.Errorf("corrupt history was overwritten: %q", data)
	}
}

func TestRun_SQLiteBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.PersistenceBackend = config.BackendSQLite

	err := runFor(t, cfg, 300*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v; want context deadline exceeded", err)
	}

	conn, err := sql.Open("sqlite3", cfg.SQLitePath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = conn.Close() }()

	var payload string
	var count int
	if err := conn.QueryRow(`SELECT payload, reading_count FROM reading_log WHERE id = 1`).Scan(&payload, &count); err != nil {
		t.Fatalf("read reading_log: %v", err)
	}
	if payload != "[]" || count != 0 {
		t.Errorf("row = (%q, %d); want ([], 0)", payload, count)
	}
}

func TestRun_HTTPListenFailureStillPersists(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTPAddr = "127.0.0.1:99999"

	err := runFor(t, cfg, 5*time.Second)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v; want http server error", err)
	}
	if _, statErr := os.Stat(cfg.DataFile); statErr != nil {
		t.Errorf("reading log not persisted: %v", statErr)
	}
}

func TestOpenRepository_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.PersistenceBackend = "postgres"
	if _, _, err := openRepository(context.Background(), cfg, discard()); err == nil {
		t.Fatal("openRepository error = nil; want unknown backend")
	}
}
