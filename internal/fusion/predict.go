package fusion

import (
	"math"

	"erosion-platform/internal/models"
)

// PipelineVariant selects the prediction profile. Event-anchored runs
// react to a trigger event; continuous runs cover a scheduled window.
type PipelineVariant int

const (
	EventAnchored PipelineVariant = iota
	Continuous
)

func (v PipelineVariant) String() string {
	if v == Continuous {
		return "continuous"
	}
	return "event_anchored"
}

// HorizonDays is the forward horizon of every prediction.
const HorizonDays = 7

// Outcome is the full derived prediction for one fusion run.
type Outcome struct {
	ErosionPredicted bool
	RiskLevel        models.RiskLevel
	ConfidencePct    float64
	RatePerYearM     float64
	EventFactor      float64
	SensorFactor     float64
	HistoryFactor    float64
	Recommendations  []string
	UrgentActions    []string
}

var recommendationsByRisk = map[models.RiskLevel][]string{
	models.RiskCritical: {
		"Evacuate exposed infrastructure from the shoreline",
		"Deploy emergency coastal defenses",
		"Increase sensor polling to continuous mode",
	},
	models.RiskHigh: {
		"Schedule a geotechnical survey within 48 hours",
		"Restrict public access to unstable shore segments",
		"Review shoreline defense maintenance records",
	},
	models.RiskModerate: {
		"Increase monitoring frequency for the affected zone",
		"Verify drainage and runoff channels",
	},
	models.RiskLow: {
		"Continue routine monitoring",
	},
}

var urgentActionsByRisk = map[models.RiskLevel][]string{
	models.RiskCritical: {
		"Activate the coastal emergency response plan",
		"Notify civil protection authorities immediately",
	},
	models.RiskHigh: {
		"Alert the zone response team",
		"Prepare protective barriers for deployment",
	},
}

// Predict derives the full outcome from a composite score, its
// probability and the per-kind sensor statistics.
func Predict(variant PipelineVariant, scores Scores, probability float64, stats map[models.SensorKind]SensorStats) Outcome {
	out := Outcome{
		ConfidencePct: math.Min(probability*100, 95),
		EventFactor:   scores.Composite * WeightEvent,
		SensorFactor:  scores.Composite * WeightSensors,
		HistoryFactor: scores.Composite * WeightHistory,
	}

	switch variant {
	case Continuous:
		out.ErosionPredicted = probability > 0.5
		out.RatePerYearM = scores.Composite * 0.01
	default:
		out.ErosionPredicted = probability > 0.6
		out.RatePerYearM = scores.Composite / 100.0 * 3.0
	}

	out.RiskLevel = riskFromScore(scores.Composite)
	out.Recommendations = buildRecommendations(out.RiskLevel, stats)
	out.UrgentActions = append([]string(nil), urgentActionsByRisk[out.RiskLevel]...)

	return out
}

func riskFromScore(score float64) models.RiskLevel {
	switch {
	case score > 80:
		return models.RiskCritical
	case score > 60:
		return models.RiskHigh
	case score > 40:
		return models.RiskModerate
	default:
		return models.RiskLow
	}
}

// buildRecommendations combines the risk tier baseline with sensor
// specific advisories.
func buildRecommendations(level models.RiskLevel, stats map[models.SensorKind]SensorStats) []string {
	recs := append([]string(nil), recommendationsByRisk[level]...)

	if st, ok := stats[models.SensorWindSpeed]; ok && st.Max > 50 {
		recs = append(recs, "Secure loose structures against high winds")
	}
	if st, ok := stats[models.SensorSeaLevel]; ok && st.Max > 2 {
		recs = append(recs, "Inspect sea walls and revetments for overtopping")
	}
	if st, ok := stats[models.SensorRainfall]; ok && st.Max > 50 {
		recs = append(recs, "Check slope stability after heavy rainfall")
	}
	if st, ok := stats[models.SensorTemperature]; ok && st.Max > 35 {
		recs = append(recs, "Monitor sediment desiccation in high temperatures")
	}
	if st, ok := stats[models.SensorHumidity]; ok && st.Mean > 85 {
		recs = append(recs, "Watch for saturation-driven soil weakening")
	}

	return recs
}
