// Package store owns the append-only reading log and the aggregate
// snapshot derived from it.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"weather-subscriber/internal/modules/weather/types"
)

// ErrMalformedLog is returned by Load when persisted history cannot be decoded.
var ErrMalformedLog = errors.New("malformed reading log")

// Store is the sole mutator of the reading log. All methods are safe for
// concurrent use; Append is atomic with respect to the aggregate update.
type Store struct {
	mu       sync.RWMutex
	readings []types.Reading
	agg      aggregate
}

func New() *Store {
	return &Store{agg: newAggregate()}
}

// Load rebuilds a store from a previously serialized log. Empty input means
// nothing was persisted yet and yields an empty store.
func Load(data []byte) (*Store, error) {
	s := New()
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return s, nil
	}

	var readings []types.Reading
	if err := json.Unmarshal(trimmed, &readings); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLog, err)
	}
	for _, r := range readings {
		s.readings = append(s.readings, r)
		s.agg.add(r)
	}
	return s, nil
}

// Append adds r to the tail of the log and returns the new total count.
func (s *Store) Append(r types.Reading) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	s.agg.add(r)
	return len(s.readings)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}

func (s *Store) Snapshot() types.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agg.snapshot()
}

// Readings returns a copy of the log in arrival order.
func (s *Store) Readings() []types.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// Serialize encodes the full log as an indented JSON array. The result is
// always a complete replacement of any earlier serialization.
func (s *Store) Serialize() ([]byte, error) {
	s.mu.RLock()
	readings := s.readings
	if readings == nil {
		readings = []types.Reading{}
	}
	data, err := json.MarshalIndent(readings, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("serialize reading log: %w", err)
	}
	return data, nil
}

// Compute derives a snapshot from scratch over readings.
func Compute(readings []types.Reading) types.Snapshot {
	agg := newAggregate()
	for _, r := range readings {
		agg.add(r)
	}
	return agg.snapshot()
}
