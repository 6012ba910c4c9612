package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"weather-subscriber/internal/modules/weather/repository"
	"weather-subscriber/internal/modules/weather/store"
	"weather-subscriber/internal/modules/weather/types"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// DefaultSnapshotInterval is the number of appended readings between two
// persist-and-report cycles when none is configured.
const DefaultSnapshotInterval = 10

// maxLoggedPayload bounds how much of an undecodable payload ends up in logs.
const maxLoggedPayload = 256

// Stats are counters over the lifetime of an Ingestor.
type Stats struct {
	Received        uint64 `json:"received"`
	Appended        uint64 `json:"appended"`
	Dropped         uint64 `json:"dropped"`
	Persisted       uint64 `json:"persisted"`
	PersistFailures uint64 `json:"persistFailures"`
	Panics          uint64 `json:"panics"`
}

// Ingestor turns broker messages into readings, appends them to the store
// and persists and reports the log every interval appends.
type Ingestor struct {
	store    *store.Store
	repo     repository.SnapshotRepository
	reporter Reporter
	interval int
	logger   *slog.Logger

	// mu serializes append, cadence check and flush so a cadence flush and
	// the shutdown flush never interleave.
	mu     sync.Mutex
	closed bool

	received        atomic.Uint64
	appended        atomic.Uint64
	dropped         atomic.Uint64
	persisted       atomic.Uint64
	persistFailures atomic.Uint64
	panics          atomic.Uint64
}

// New returns an Ingestor. An interval below 1 falls back to
// DefaultSnapshotInterval.
func New(s *store.Store, repo repository.SnapshotRepository, reporter Reporter, interval int, logger *slog.Logger) *Ingestor {
	if interval < 1 {
		interval = DefaultSnapshotInterval
	}
	return &Ingestor{
		store:    s,
		repo:     repo,
		reporter: reporter,
		interval: interval,
		logger:   logger.With("component", "ingestor"),
	}
}

func (i *Ingestor) OnConnect(code byte) {
	if code == packets.Accepted {
		i.logger.Info("connected to broker")
		return
	}
	reason := "unknown return code"
	if err := packets.ConnErrors[code]; err != nil {
		reason = err.Error()
	}
	i.logger.Error("broker refused connection", "code", code, "reason", reason)
}

func (i *Ingestor) OnConnectionLost(err error) {
	i.logger.Warn("connection to broker lost", "error", err)
}

// OnMessage decodes one payload and appends it. Undecodable payloads are
// dropped; a panic is logged and counted and never reaches the caller.
func (i *Ingestor) OnMessage(topic string, payload []byte) {
	i.received.Add(1)
	defer func() {
		if rec := recover(); rec != nil {
			i.panics.Add(1)
			i.logger.Error("panic while handling message",
				"topic", topic,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
		}
	}()

	var r types.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		i.dropped.Add(1)
		i.logger.Warn("dropping undecodable message",
			"topic", topic,
			"error", err,
			"payload", truncate(payload, maxLoggedPayload),
		)
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.logReading(r)
	count := i.store.Append(r)
	i.appended.Add(1)

	ctx := context.Background()
	switch {
	case i.closed:
		// Messages can still arrive between Shutdown and the transport
		// disconnect; keep each one on disk.
		_ = i.flushLocked(ctx)
	case count%i.interval == 0:
		_ = i.flushLocked(ctx)
		i.reporter.Report(ctx, ReasonCadence, i.store.Snapshot())
	}
}

func (i *Ingestor) logReading(r types.Reading) {
	attrs := []any{
		"station_id", r.DisplayStation(),
		"temperature_c", r.DisplayTemperature(),
		"humidity_pct", r.DisplayHumidity(),
		"timestamp", r.DisplayTimestamp(),
	}
	if r.IsFault() {
		i.logger.Warn("sensor fault reported", attrs...)
		return
	}
	i.logger.Info("reading received", attrs...)
}

// Flush writes the full log through the repository.
func (i *Ingestor) Flush(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.flushLocked(ctx)
}

func (i *Ingestor) flushLocked(ctx context.Context) error {
	data, err := i.store.Serialize()
	if err != nil {
		i.persistFailures.Add(1)
		i.logger.Error("serialize reading log failed", "error", err)
		return fmt.Errorf("serialize reading log: %w", err)
	}
	count := i.store.Len()
	if err := i.repo.Write(ctx, data, count); err != nil {
		i.persistFailures.Add(1)
		i.logger.Error("persist reading log failed", "readings", count, "error", err)
		return fmt.Errorf("persist reading log: %w", err)
	}
	i.persisted.Add(1)
	i.logger.Info("reading log persisted", "readings", count, "bytes", len(data))
	return nil
}

// Shutdown persists the log one final time and reports the final snapshot.
// The caller disconnects the transport afterwards. Only the first call
// does any work.
func (i *Ingestor) Shutdown(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true

	err := i.flushLocked(ctx)
	i.reporter.Report(ctx, ReasonShutdown, i.store.Snapshot())
	if err != nil {
		return errors.Join(errors.New("final persist failed"), err)
	}
	return nil
}

func (i *Ingestor) Snapshot() types.Snapshot {
	return i.store.Snapshot()
}

func (i *Ingestor) Stats() Stats {
	return Stats{
		Received:        i.received.Load(),
		Appended:        i.appended.Load(),
		Dropped:         i.dropped.Load(),
		Persisted:       i.persisted.Load(),
		PersistFailures: i.persistFailures.Load(),
		Panics:          i.panics.Load(),
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
