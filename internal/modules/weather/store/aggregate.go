package store

import (
	"sort"

	"weather-subscriber/internal/modules/weather/types"
)

// aggregate keeps running means so a snapshot never rescans the log.
// Means are updated incrementally rather than from sums, so readings near
// the float64 limits never overflow to Inf.
type aggregate struct {
	count int
	valid int

	meanTemp float64
	minTemp  float64
	maxTemp  float64

	meanHumidity  float64
	humidityCount int

	stations map[string]struct{}
}

func newAggregate() aggregate {
	return aggregate{stations: make(map[string]struct{})}
}

func (a *aggregate) add(r types.Reading) {
	a.count++
	if r.StationID != "" {
		a.stations[r.StationID] = struct{}{}
	}
	if !r.IsValid() {
		return
	}

	t := *r.Temperature
	if a.valid == 0 || t < a.minTemp {
		a.minTemp = t
	}
	if a.valid == 0 || t > a.maxTemp {
		a.maxTemp = t
	}
	a.valid++
	a.meanTemp = runningMean(a.meanTemp, t, a.valid)

	if r.Humidity != nil {
		a.humidityCount++
		a.meanHumidity = runningMean(a.meanHumidity, *r.Humidity, a.humidityCount)
	}
}

// runningMean folds v into the mean of n-1 values. Both terms are divided
// before subtracting so the step stays finite for any finite inputs.
func runningMean(mean, v float64, n int) float64 {
	return mean + (v/float64(n) - mean/float64(n))
}

func (a *aggregate) snapshot() types.Snapshot {
	stations := make([]string, 0, len(a.stations))
	for id := range a.stations {
		stations = append(stations, id)
	}
	sort.Strings(stations)

	snap := types.Snapshot{
		Count:    a.count,
		Valid:    a.valid,
		Faults:   a.count - a.valid,
		Stations: stations,
	}
	if a.valid > 0 {
		snap.Temperature = &types.TemperatureStats{
			Mean: a.meanTemp,
			Min:  a.minTemp,
			Max:  a.maxTemp,
		}
	}
	if a.humidityCount > 0 {
		mean := a.meanHumidity
		snap.MeanHumidity = &mean
	}
	return snap
}
