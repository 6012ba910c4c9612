package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"weather-subscriber/internal/config"
	"weather-subscriber/internal/db"
	"weather-subscriber/internal/db/migrate"
	"weather-subscriber/internal/httpapi"
	weather "weather-subscriber/internal/modules/weather"
	"weather-subscriber/internal/modules/weather/repository"
	"weather-subscriber/internal/modules/weather/service"
	"weather-subscriber/internal/modules/weather/store"
	"weather-subscriber/internal/mqtt"
	"weather-subscriber/internal/scheduler"
)

var (
	mqttConnectTimeout = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// Run starts the subscriber and blocks until ctx is done or the HTTP server
// fails. On the way out the reading log is persisted and reported before
// the broker connection is closed.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
		"mqttClientId", cfg.MQTTClientID,
		"snapshotInterval", cfg.SnapshotInterval,
		"reportInterval", cfg.ReportInterval.String(),
		"persistenceBackend", cfg.PersistenceBackend,
	)

	repo, dbConn, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	st, err := loadStore(ctx, repo, logger)
	if err != nil {
		return err
	}

	reporter := service.NewLogReporter(logger)
	ingestor := service.New(st, repo, reporter, cfg.SnapshotInterval, logger)

	// The handler is in place before Connect so messages delivered right
	// after CONNACK are not missed.
	subscriber, err := mqtt.NewSubscriber(cfg, ingestor, logger)
	if err != nil {
		return err
	}

	mux := httpapi.NewMux(httpapi.Deps{DB: dbConn, MQTT: subscriber, Readings: ingestor})
	weather.RegisterFeature(mux, ingestor)

	connectCtx, connectCancel := context.WithTimeout(ctx, mqttConnectTimeout)
	err = subscriber.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logger.Warn("mqtt connection not established yet (retrying in background)", "error", err)
	}

	sched := scheduler.New(cfg.ReportInterval, ingestor, reporter, logger)
	if err := sched.Start(); err != nil {
		subscriber.Disconnect()
		return fmt.Errorf("start scheduler: %w", err)
	}

	srv := httpapi.NewServer(cfg, mux, logger)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
		errCh = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sched.Stop()

	logger.Info("persisting reading log before shutdown")
	if err := ingestor.Shutdown(shutdownCtx); err != nil {
		logger.Error("final persist failed", "error", err)
	}

	logger.Info("mqtt disconnecting")
	subscriber.Disconnect()

	if errCh != nil {
		logger.Info("http shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	stats := ingestor.Stats()
	logger.Info("ingestion stopped",
		"received", stats.Received,
		"appended", stats.Appended,
		"dropped", stats.Dropped,
		"persist_failures", stats.PersistFailures,
		"panics", stats.Panics,
	)

	if serveErr != nil {
		return serveErr
	}
	return ctx.Err()
}

func openRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.SnapshotRepository, *sql.DB, error) {
	switch cfg.PersistenceBackend {
	case config.BackendSQLite:
		conn, err := db.Open(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := migrate.Run(ctx, conn, logger); err != nil {
			_ = db.Close(conn)
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("reading log stored in sqlite", "path", cfg.SQLitePath)
		return repository.NewSQLiteRepository(conn), conn, nil
	case config.BackendFile, "":
		logger.Info("reading log stored in file", "path", cfg.DataFile)
		return repository.NewFileRepository(cfg.DataFile), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown persistence backend %q", cfg.PersistenceBackend)
	}
}

func loadStore(ctx context.Context, repo repository.SnapshotRepository, logger *slog.Logger) (*store.Store, error) {
	data, err := repo.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reading log: %w", err)
	}
	if data == nil {
		logger.Info("no previous reading log found, starting empty")
		return store.New(), nil
	}
	st, err := store.Load(data)
	if err != nil {
		return nil, fmt.Errorf("load reading log: %w", err)
	}
	logger.Info("reading log loaded", "readings", st.Len())
	return st, nil
}
