package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// RiskLevel is the qualitative erosion risk tier used for zones and predictions.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Numeric encodes the risk tier for feature vectors (low=1 .. critical=4).
func (r RiskLevel) Numeric() float64 {
	switch r {
	case RiskLow:
		return 1.0
	case RiskModerate:
		return 2.0
	case RiskHigh:
		return 3.0
	case RiskCritical:
		return 4.0
	default:
		return 1.0
	}
}

// Zone represents a monitored coastal zone
type Zone struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	AreaKm2   float64   `json:"area_km2" db:"area_km2"`
	RiskTier  RiskLevel `json:"risk_tier" db:"risk_tier"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SensorKind identifies the physical quantity a sensor measures.
type SensorKind string

const (
	SensorTemperature   SensorKind = "temperature"
	SensorHumidity      SensorKind = "humidity"
	SensorPressure      SensorKind = "pressure"
	SensorWindSpeed     SensorKind = "wind_speed"
	SensorWindDirection SensorKind = "wind_direction"
	SensorRainfall      SensorKind = "rainfall"
	SensorSeaLevel      SensorKind = "sea_level"
	SensorSalinity      SensorKind = "salinity"
	SensorPH            SensorKind = "ph"
	SensorTurbidity     SensorKind = "turbidity"
	SensorGPS           SensorKind = "gps"
	SensorAccelerometer SensorKind = "accelerometer"
	SensorGyroscope     SensorKind = "gyroscope"
)

// Sensor represents a field sensor attached to a zone
type Sensor struct {
	ID        int64      `json:"id" db:"id"`
	ZoneID    int64      `json:"zone_id" db:"zone_id"`
	Name      string     `json:"name" db:"name"`
	Kind      SensorKind `json:"kind" db:"kind"`
	Status    string     `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// SensorReading represents a single telemetry data point
type SensorReading struct {
	ID        int64     `json:"id" db:"id"`
	SensorID  int64     `json:"sensor_id" db:"sensor_id"`
	Value     float64   `json:"value" db:"value"`
	Unit      string    `json:"unit" db:"unit"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Valid     bool      `json:"valid" db:"valid"`
	Quality   string    `json:"quality" db:"quality"` // "good", "fair", "poor"
}

// EventKind identifies the type of an externally reported climatic event.
type EventKind string

const (
	EventRain            EventKind = "rain"
	EventStorm           EventKind = "storm"
	EventHighWind        EventKind = "high_wind"
	EventWave            EventKind = "wave"
	EventExceptionalTide EventKind = "exceptional_tide"
	EventDrought         EventKind = "drought"
	EventFlood           EventKind = "flood"
	EventTsunami         EventKind = "tsunami"
	EventHurricane       EventKind = "hurricane"
	EventCyclone         EventKind = "cyclone"
	EventOther           EventKind = "other"
)

// IntensityCategory buckets event intensity for display and filtering.
type IntensityCategory string

const (
	IntensityLow      IntensityCategory = "low"      // 0-25
	IntensityModerate IntensityCategory = "moderate" // 26-50
	IntensityStrong   IntensityCategory = "strong"   // 51-75
	IntensityExtreme  IntensityCategory = "extreme"  // 76-100
)

// ExternalEvent represents a climatic event reported by an external source
type ExternalEvent struct {
	ID                int64             `json:"id" db:"id"`
	ZoneID            int64             `json:"zone_id" db:"zone_id"`
	Kind              EventKind         `json:"kind" db:"kind"`
	Intensity         float64           `json:"intensity" db:"intensity"`
	IntensityCategory IntensityCategory `json:"intensity_category" db:"intensity_category"`
	Description       string            `json:"description,omitempty" db:"description"`
	OccurredAt        time.Time         `json:"occurred_at" db:"occurred_at"`
	Source            string            `json:"source" db:"source"`
	DurationMinutes   *int              `json:"duration_minutes,omitempty" db:"duration_minutes"`
	ImpactRadiusKm    *float64          `json:"impact_radius_km,omitempty" db:"impact_radius_km"`
	Simulation        bool              `json:"simulation" db:"simulation"`
	Valid             bool              `json:"valid" db:"valid"`
	Processed         bool              `json:"processed" db:"processed"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}

// Normalize re-derives the intensity category from the intensity value.
// Called on every write; the category is never caller-supplied.
func (e *ExternalEvent) Normalize() {
	switch {
	case e.Intensity <= 25:
		e.IntensityCategory = IntensityLow
	case e.Intensity <= 50:
		e.IntensityCategory = IntensityModerate
	case e.Intensity <= 75:
		e.IntensityCategory = IntensityStrong
	default:
		e.IntensityCategory = IntensityExtreme
	}
}

// RiskLevel derives a qualitative risk level from the event intensity.
func (e *ExternalEvent) RiskLevel() RiskLevel {
	switch {
	case e.Intensity >= 80:
		return RiskCritical
	case e.Intensity >= 60:
		return RiskHigh
	case e.Intensity >= 40:
		return RiskModerate
	default:
		return RiskLow
	}
}

// ErosionHistoryRecord represents a long-term erosion measurement
type ErosionHistoryRecord struct {
	ID           int64     `json:"id" db:"id"`
	ZoneID       int64     `json:"zone_id" db:"zone_id"`
	MeasuredAt   time.Time `json:"measured_at" db:"measured_at"`
	RatePerYearM float64   `json:"rate_per_year_m" db:"rate_per_year_m"`
	Method       string    `json:"method" db:"method"`
	PrecisionM   float64   `json:"precision_m" db:"precision_m"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// EnvironmentalRecord holds consolidated external-API aggregates for a zone period
type EnvironmentalRecord struct {
	ID                 int64     `json:"id" db:"id"`
	ZoneID             int64     `json:"zone_id" db:"zone_id"`
	PeriodStart        time.Time `json:"period_start" db:"period_start"`
	PeriodEnd          time.Time `json:"period_end" db:"period_end"`
	TempMean           *float64  `json:"temp_mean,omitempty" db:"temp_mean"`
	WindSpeed          *float64  `json:"wind_speed,omitempty" db:"wind_speed"`
	PrecipitationTotal *float64  `json:"precipitation_total,omitempty" db:"precipitation_total"`
	SeaLevelMean       *float64  `json:"sea_level_mean,omitempty" db:"sea_level_mean"`
	ElevationMean      *float64  `json:"elevation_mean,omitempty" db:"elevation_mean"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// FusionStatus is the lifecycle status of a fusion analysis run.
type FusionStatus string

const (
	FusionPending  FusionStatus = "pending"
	FusionComplete FusionStatus = "complete"
	FusionFailed   FusionStatus = "failed"
)

// FusionResult records one multi-signal analysis run for a zone/window
type FusionResult struct {
	ID              int64          `json:"id" db:"id"`
	ZoneID          int64          `json:"zone_id" db:"zone_id"`
	EventID         *int64         `json:"event_id,omitempty" db:"event_id"`
	PeriodStart     time.Time      `json:"period_start" db:"period_start"`
	PeriodEnd       time.Time      `json:"period_end" db:"period_end"`
	ReadingCount    int            `json:"reading_count" db:"reading_count"`
	EventCount      int            `json:"event_count" db:"event_count"`
	Score           float64        `json:"score" db:"score"`
	Probability     float64        `json:"probability" db:"probability"`
	DominantFactors pq.StringArray `json:"dominant_factors" db:"dominant_factors"`
	Status          FusionStatus   `json:"status" db:"status"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// ConfidenceTier buckets prediction confidence for display.
type ConfidenceTier string

const (
	ConfidenceLow      ConfidenceTier = "low"       // < 60
	ConfidenceMedium   ConfidenceTier = "medium"    // 60-80
	ConfidenceHigh     ConfidenceTier = "high"      // 80-95
	ConfidenceVeryHigh ConfidenceTier = "very_high" // > 95
)

// DeriveConfidenceTier maps a confidence percentage to its tier.
func DeriveConfidenceTier(pct float64) ConfidenceTier {
	switch {
	case pct < 60:
		return ConfidenceLow
	case pct < 80:
		return ConfidenceMedium
	case pct < 95:
		return ConfidenceHigh
	default:
		return ConfidenceVeryHigh
	}
}

// Prediction is the risk assessment derived from one fusion result
type Prediction struct {
	ID               int64          `json:"id" db:"id"`
	ZoneID           int64          `json:"zone_id" db:"zone_id"`
	FusionID         int64          `json:"fusion_id" db:"fusion_id"`
	ErosionPredicted bool           `json:"erosion_predicted" db:"erosion_predicted"`
	RiskLevel        RiskLevel      `json:"risk_level" db:"risk_level"`
	ConfidencePct    float64        `json:"confidence_pct" db:"confidence_pct"`
	ConfidenceTier   ConfidenceTier `json:"confidence_tier" db:"confidence_tier"`
	RatePerYearM     float64        `json:"rate_per_year_m" db:"rate_per_year_m"`
	HorizonDays      int            `json:"horizon_days" db:"horizon_days"`
	EventFactor      float64        `json:"event_factor" db:"event_factor"`
	SensorFactor     float64        `json:"sensor_factor" db:"sensor_factor"`
	HistoryFactor    float64        `json:"history_factor" db:"history_factor"`
	Recommendations  pq.StringArray `json:"recommendations" db:"recommendations"`
	UrgentActions    pq.StringArray `json:"urgent_actions" db:"urgent_actions"`
	ModelUsed        string         `json:"model_used" db:"model_used"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// Normalize re-derives the confidence tier from the confidence percentage.
func (p *Prediction) Normalize() {
	p.ConfidenceTier = DeriveConfidenceTier(p.ConfidencePct)
}

// AlertKind identifies the rule that produced an alert.
type AlertKind string

const (
	AlertExtremeEvent     AlertKind = "extreme_event"
	AlertErosionPredicted AlertKind = "erosion_predicted"
)

// AlertSeverity grades the urgency of an alert.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWatch    AlertSeverity = "watch"
	SeverityAlert    AlertSeverity = "alert"
	SeverityCritical AlertSeverity = "critical"
)

// Alert records a threshold crossing that requires operator attention
type Alert struct {
	ID              int64          `json:"id" db:"id"`
	ZoneID          int64          `json:"zone_id" db:"zone_id"`
	PredictionID    *int64         `json:"prediction_id,omitempty" db:"prediction_id"`
	EventID         *int64         `json:"event_id,omitempty" db:"event_id"`
	Kind            AlertKind      `json:"kind" db:"kind"`
	Severity        AlertSeverity  `json:"severity" db:"severity"`
	Title           string         `json:"title" db:"title"`
	Description     string         `json:"description" db:"description"`
	Active          bool           `json:"active" db:"active"`
	Resolved        bool           `json:"resolved" db:"resolved"`
	RequiredActions pq.StringArray `json:"required_actions" db:"required_actions"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ModelAlgorithm identifies a trainable regression algorithm.
type ModelAlgorithm string

const (
	AlgorithmRandomForest     ModelAlgorithm = "random_forest"
	AlgorithmLinearRegression ModelAlgorithm = "linear_regression"
)

// ModelStatus is the lifecycle status of a model artifact.
type ModelStatus string

const (
	ModelActive   ModelStatus = "active"
	ModelInactive ModelStatus = "inactive"
)

// ModelArtifact is a trained, persisted regression model.
// At most one artifact is active per deployment.
type ModelArtifact struct {
	ID              int64           `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	Version         string          `json:"version" db:"version"`
	Algorithm       ModelAlgorithm  `json:"algorithm" db:"algorithm"`
	Status          ModelStatus     `json:"status" db:"status"`
	FeatureNames    pq.StringArray  `json:"feature_names" db:"feature_names"`
	R2              float64         `json:"r2" db:"r2"`
	MSE             float64         `json:"mse" db:"mse"`
	Parameters      json.RawMessage `json:"-" db:"parameters"`
	PredictionCount int64           `json:"prediction_count" db:"prediction_count"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	LastUsedAt      *time.Time      `json:"last_used_at,omitempty" db:"last_used_at"`
}
