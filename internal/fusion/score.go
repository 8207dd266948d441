package fusion

import (
	"fmt"
	"math"

	"erosion-platform/internal/models"
)

// Component weights for the composite score.
const (
	WeightEvent   = 0.4
	WeightSensors = 0.3
	WeightContext = 0.2
	WeightHistory = 0.1
)

// neutralScore is assumed for any component with no supporting data.
const neutralScore = 50.0

// historyWindow caps how many recent erosion measurements enter the
// history component.
const historyWindow = 12

// eventKindModifiers scale the trigger event intensity by severity class.
var eventKindModifiers = map[models.EventKind]float64{
	models.EventTsunami:         2.0,
	models.EventHurricane:       1.5,
	models.EventCyclone:         1.5,
	models.EventExceptionalTide: 1.3,
	models.EventStorm:           1.2,
	models.EventWave:            1.1,
	models.EventFlood:           1.1,
	models.EventHighWind:        1.0,
	models.EventRain:            0.8,
	models.EventDrought:         0.6,
	models.EventOther:           1.0,
}

// sensorKindWeights rank sensor kinds by erosion relevance.
var sensorKindWeights = map[models.SensorKind]float64{
	models.SensorWindSpeed:     1.2,
	models.SensorRainfall:      1.1,
	models.SensorSeaLevel:      1.5,
	models.SensorSalinity:      1.0,
	models.SensorTurbidity:     1.0,
	models.SensorTemperature:   0.8,
	models.SensorPressure:      0.7,
	models.SensorPH:            0.8,
	models.SensorHumidity:      0.6,
	models.SensorWindDirection: 0.9,
	models.SensorGPS:           0.5,
	models.SensorAccelerometer: 0.7,
	models.SensorGyroscope:     0.6,
}

// Scores holds the component and composite scores of one fusion run.
type Scores struct {
	Event     float64 `json:"event"`
	Sensors   float64 `json:"sensors"`
	Context   float64 `json:"context"`
	History   float64 `json:"history"`
	Composite float64 `json:"composite"`
}

func clamp100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// Score computes the weighted composite and its components from a
// fusion input and pre-aggregated sensor statistics.
func Score(in Input, stats map[models.SensorKind]SensorStats) Scores {
	s := Scores{
		Event:   eventScore(in.TriggerEvent),
		Sensors: sensorScore(stats),
		Context: contextScore(in.Events),
		History: historyScore(in.History),
	}
	s.Composite = clamp100(
		s.Event*WeightEvent +
			s.Sensors*WeightSensors +
			s.Context*WeightContext +
			s.History*WeightHistory)
	return s
}

func eventScore(ev *models.ExternalEvent) float64 {
	if ev == nil {
		return neutralScore
	}

	modifier, ok := eventKindModifiers[ev.Kind]
	if !ok {
		modifier = 1.0
	}
	score := ev.Intensity * modifier

	if ev.DurationMinutes != nil {
		score += math.Min(float64(*ev.DurationMinutes)/60.0, 10)
	}
	if ev.ImpactRadiusKm != nil {
		score += math.Min(*ev.ImpactRadiusKm, 15)
	}

	return clamp100(score)
}

func sensorScore(stats map[models.SensorKind]SensorStats) float64 {
	if len(stats) == 0 {
		return neutralScore
	}

	var weightedSum, weightSum float64
	for kind, st := range stats {
		weight, ok := sensorKindWeights[kind]
		if !ok {
			weight = 1.0
		}
		weightedSum += kindScore(kind, st) * weight
		weightSum += weight
	}
	return clamp100(weightedSum / weightSum)
}

// kindScore converts one kind's statistics to a 0-100 contribution.
// Sea level, rainfall and wind use peak values; everything else uses
// dispersion as an instability signal.
func kindScore(kind models.SensorKind, st SensorStats) float64 {
	switch kind {
	case models.SensorSeaLevel:
		return clamp100(st.Max * 20)
	case models.SensorRainfall:
		return clamp100(st.Max * 0.5)
	case models.SensorWindSpeed:
		return clamp100(st.Max * 2)
	default:
		return clamp100(st.StdDev * 10)
	}
}

func contextScore(events []models.ExternalEvent) float64 {
	if len(events) == 0 {
		return neutralScore
	}

	var severe, moderate, minor int
	for _, ev := range events {
		switch {
		case ev.Intensity > 70:
			severe++
		case ev.Intensity >= 40:
			moderate++
		default:
			minor++
		}
	}
	return math.Min(100, float64(severe*20+moderate*10+minor*5))
}

func historyScore(records []models.ErosionHistoryRecord) float64 {
	if len(records) == 0 {
		return neutralScore
	}

	n := len(records)
	if n > historyWindow {
		n = historyWindow
	}

	var sum float64
	for _, rec := range records[:n] {
		sum += rec.RatePerYearM
	}
	meanRate := sum / float64(n)

	switch {
	case meanRate > 2.0:
		return 80
	case meanRate > 1.0:
		return 60
	case meanRate > 0.5:
		return 40
	default:
		return 20
	}
}

// Probability maps a composite score to an erosion probability via a
// sigmoid centered at the neutral score.
func Probability(score float64) float64 {
	return 1.0 / (1.0 + math.Exp(-(score-neutralScore)/20.0))
}

// DominantFactors lists up to five human-readable drivers of the score.
func DominantFactors(in Input, stats map[models.SensorKind]SensorStats) []string {
	factors := make([]string, 0, 5)

	if ev := in.TriggerEvent; ev != nil {
		if ev.Intensity > 80 {
			factors = append(factors, fmt.Sprintf("extreme %s event", ev.Kind))
		} else if ev.Intensity > 60 {
			factors = append(factors, fmt.Sprintf("strong %s event", ev.Kind))
		}
	}

	if st, ok := stats[models.SensorWindSpeed]; ok && st.Max > 50 {
		factors = append(factors, "high wind speeds")
	}
	if st, ok := stats[models.SensorSeaLevel]; ok && st.Max > 2 {
		factors = append(factors, "elevated sea level")
	}
	if st, ok := stats[models.SensorRainfall]; ok && st.Max > 50 {
		factors = append(factors, "heavy rainfall")
	}

	if len(in.Events) > 5 {
		factors = append(factors, "multiple concurrent events")
	}

	if len(factors) > 5 {
		factors = factors[:5]
	}
	return factors
}
