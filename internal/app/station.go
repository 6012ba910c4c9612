package app

import (
	"context"
	"log/slog"

	"weather-subscriber/internal/config"
	"weather-subscriber/internal/mqtt"
	"weather-subscriber/internal/station"
)

// RunStation publishes simulated readings for cfg.Station until ctx is done.
func RunStation(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("station config loaded",
		"stationId", cfg.Station.ID,
		"publishInterval", cfg.Station.PublishInterval.String(),
		"faultRate", cfg.Station.FaultRate,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)

	client, err := mqtt.NewClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	if err := client.Connect(ctx); err != nil {
		return err
	}

	gen := station.NewGenerator(cfg.Station.ID, cfg.Station.FaultRate, nil, nil)
	return station.Run(ctx, gen, client, cfg.MQTTTopic, cfg.Station.PublishInterval, logger)
}
