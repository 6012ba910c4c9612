package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// FaultTemperature is the value a station reports when its sensor failed.
const FaultTemperature = -999.0

// Placeholders used when a payload omits a recognized field.
const (
	UnknownStation = "unknown"
	NotAvailable   = "N/A"
)

const (
	fieldStationID   = "stationId"
	fieldTemperature = "temperature"
	fieldHumidity    = "humidity"
	fieldTimestamp   = "timestamp"
)

// Reading is a single observation published by a weather station.
// Nil pointers mean the field was absent from the payload. Fields that are
// not recognized are kept in Extra and written back when the reading is
// marshaled.
type Reading struct {
	StationID   string
	Temperature *float64
	Humidity    *float64
	Timestamp   string
	Extra       map[string]json.RawMessage
}

// IsFault reports whether the station flagged a sensor failure.
// The comparison is exact: -998.9 is a real temperature.
func (r Reading) IsFault() bool {
	return r.Temperature != nil && *r.Temperature == FaultTemperature
}

// IsValid reports whether the reading contributes to temperature and
// humidity aggregates.
func (r Reading) IsValid() bool {
	return r.Temperature != nil && *r.Temperature != FaultTemperature
}

func (r Reading) DisplayStation() string {
	if r.StationID == "" {
		return UnknownStation
	}
	return r.StationID
}

func (r Reading) DisplayTemperature() string {
	return displayFloat(r.Temperature)
}

func (r Reading) DisplayHumidity() string {
	return displayFloat(r.Humidity)
}

func (r Reading) DisplayTimestamp() string {
	if r.Timestamp == "" {
		return NotAvailable
	}
	return r.Timestamp
}

func displayFloat(v *float64) string {
	if v == nil {
		return NotAvailable
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// UnmarshalJSON decodes a reading from a JSON object. A recognized field
// that is null, an empty string or of the wrong JSON type leaves the typed
// field unset and is kept verbatim in Extra instead of failing the whole
// payload, so it is written back unchanged.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("reading must be a JSON object, got null")
	}

	out := Reading{}
	keep := func(key string, raw json.RawMessage) {
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		// Compacted so a value reads back identically after indented output.
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			out.Extra[key] = append(json.RawMessage(nil), raw...)
			return
		}
		out.Extra[key] = json.RawMessage(compact.Bytes())
	}

	for key, raw := range fields {
		switch key {
		case fieldStationID:
			if !decodeOptional(raw, &out.StationID) || out.StationID == "" {
				keep(key, raw)
			}
		case fieldTimestamp:
			if !decodeOptional(raw, &out.Timestamp) || out.Timestamp == "" {
				keep(key, raw)
			}
		case fieldTemperature:
			if !decodeOptional(raw, &out.Temperature) {
				keep(key, raw)
			}
		case fieldHumidity:
			if !decodeOptional(raw, &out.Humidity) {
				keep(key, raw)
			}
		default:
			keep(key, raw)
		}
	}

	*r = out
	return nil
}

// decodeOptional reports whether raw decoded into dst. null never does.
func decodeOptional(raw json.RawMessage, dst any) bool {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// MarshalJSON writes recognized fields first, then any preserved extra
// fields in key order.
func (r Reading) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(b)
		return nil
	}

	if r.StationID != "" {
		if err := write(fieldStationID, r.StationID); err != nil {
			return nil, err
		}
	}
	if r.Temperature != nil {
		if err := write(fieldTemperature, *r.Temperature); err != nil {
			return nil, err
		}
	}
	if r.Humidity != nil {
		if err := write(fieldHumidity, *r.Humidity); err != nil {
			return nil, err
		}
	}
	if r.Timestamp != "" {
		if err := write(fieldTimestamp, r.Timestamp); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, r.Extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// TemperatureStats summarizes temperatures of valid readings.
type TemperatureStats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Snapshot is the aggregate view over the whole reading log.
// Temperature is nil when there are no valid readings; MeanHumidity is nil
// when no valid reading carries a humidity value.
type Snapshot struct {
	Count        int               `json:"count"`
	Valid        int               `json:"valid"`
	Faults       int               `json:"faults"`
	Stations     []string          `json:"stations"`
	Temperature  *TemperatureStats `json:"temperature,omitempty"`
	MeanHumidity *float64          `json:"meanHumidity,omitempty"`
}

// HasValidData reports whether temperature aggregates are defined.
func (s Snapshot) HasValidData() bool {
	return s.Temperature != nil
}
