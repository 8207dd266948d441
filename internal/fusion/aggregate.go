package fusion

import (
	"math"

	"erosion-platform/internal/models"
)

// SensorStats holds per-kind descriptive statistics for a reading window.
type SensorStats struct {
	Kind   models.SensorKind `json:"kind"`
	Count  int               `json:"count"`
	Mean   float64           `json:"mean"`
	Min    float64           `json:"min"`
	Max    float64           `json:"max"`
	StdDev float64           `json:"std_dev"`
}

// Input bundles everything a fusion run consumes. TriggerEvent is nil
// for continuous (scheduler-driven) runs.
type Input struct {
	TriggerEvent *models.ExternalEvent
	Readings     []ReadingWithKind
	Events       []models.ExternalEvent
	History      []models.ErosionHistoryRecord
}

// ReadingWithKind pairs a reading with the kind of the sensor that
// produced it, as joined by the repository.
type ReadingWithKind struct {
	models.SensorReading
	Kind models.SensorKind `db:"kind"`
}

// AggregateReadings groups valid readings by sensor kind and computes
// count, mean, min, max and population standard deviation per kind.
func AggregateReadings(readings []ReadingWithKind) map[models.SensorKind]SensorStats {
	values := make(map[models.SensorKind][]float64)
	for _, r := range readings {
		if !r.Valid {
			continue
		}
		values[r.Kind] = append(values[r.Kind], r.Value)
	}

	stats := make(map[models.SensorKind]SensorStats, len(values))
	for kind, vs := range values {
		stats[kind] = computeStats(kind, vs)
	}
	return stats
}

func computeStats(kind models.SensorKind, values []float64) SensorStats {
	s := SensorStats{
		Kind:  kind,
		Count: len(values),
		Min:   math.Inf(1),
		Max:   math.Inf(-1),
	}

	var sum float64
	for _, v := range values {
		sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean = sum / float64(len(values))

	var sumSq float64
	for _, v := range values {
		d := v - s.Mean
		sumSq += d * d
	}
	s.StdDev = math.Sqrt(sumSq / float64(len(values)))

	return s
}
