// Package station simulates a weather station that publishes a reading on
// a fixed interval.
package station

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"weather-subscriber/internal/modules/weather/types"
)

// TimestampFormat is the textual timestamp stations put in readings.
const TimestampFormat = "2006-01-02T15:04:05Z"

const (
	minTemperature = 15.0
	maxTemperature = 30.0
	minHumidity    = 30.0
	maxHumidity    = 60.0
)

// Generator produces simulated readings for one station.
type Generator struct {
	stationID string
	faultRate float64
	rng       *rand.Rand
	now       func() time.Time
}

// NewGenerator returns a generator that reports a sensor fault with
// probability faultRate. A nil src seeds from the runtime.
func NewGenerator(stationID string, faultRate float64, src rand.Source, now func() time.Time) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{
		stationID: stationID,
		faultRate: faultRate,
		rng:       rand.New(src),
		now:       now,
	}
}

// Next returns the next reading. Values are rounded to one decimal.
func (g *Generator) Next() types.Reading {
	temperature := round1(minTemperature + g.rng.Float64()*(maxTemperature-minTemperature))
	humidity := round1(minHumidity + g.rng.Float64()*(maxHumidity-minHumidity))
	if g.faultRate > 0 && g.rng.Float64() < g.faultRate {
		temperature = types.FaultTemperature
	}
	return types.Reading{
		StationID:   g.stationID,
		Temperature: &temperature,
		Humidity:    &humidity,
		Timestamp:   g.now().UTC().Format(TimestampFormat),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Run publishes one reading immediately and then one per interval until
// ctx is done. Publish failures are logged and the loop continues.
func Run(ctx context.Context, gen *Generator, pub Publisher, topic string, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		return fmt.Errorf("invalid publish interval %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		publishOne(ctx, gen, pub, topic, logger)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func publishOne(ctx context.Context, gen *Generator, pub Publisher, topic string, logger *slog.Logger) {
	r := gen.Next()
	payload, err := json.Marshal(r)
	if err != nil {
		logger.Error("marshal reading failed", "error", err)
		return
	}
	if err := pub.Publish(ctx, topic, payload); err != nil {
		logger.Warn("publish reading failed", "topic", topic, "error", err)
		return
	}

	attrs := []any{
		"station_id", r.StationID,
		"temperature_c", r.DisplayTemperature(),
		"humidity_pct", r.DisplayHumidity(),
		"timestamp", r.Timestamp,
	}
	if r.IsFault() {
		logger.Warn("published simulated sensor fault", attrs...)
		return
	}
	logger.Info("published reading", attrs...)
}
