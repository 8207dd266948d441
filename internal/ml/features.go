package ml

import (
	"fmt"
	"math"

	"erosion-platform/internal/models"
)

// featureNames fixes the vector layout. Order is part of every
// persisted model artifact and must never change between training
// and inference.
var featureNames = []string{
	"area_km2",
	"risk_tier_numeric",
	"temperature_avg_7d",
	"humidity_avg_7d",
	"pressure_avg_7d",
	"ph_avg_7d",
	"salinity_avg_7d",
	"env_temp_mean_30d",
	"env_wind_speed_30d",
	"env_precipitation_30d",
	"env_sea_level_30d",
	"env_elevation_30d",
}

// FeatureCount is the fixed width of every feature vector.
const FeatureCount = 12

// FeatureNames returns the canonical feature layout.
func FeatureNames() []string {
	return append([]string(nil), featureNames...)
}

// FeatureSource bundles the raw values a vector is built from.
// Missing sensor kinds and a nil environmental record pad with zeros.
type FeatureSource struct {
	Zone          models.Zone
	SensorMeans   map[models.SensorKind]float64
	Environmental *models.EnvironmentalRecord
}

// BuildVector assembles the fixed-order feature vector for one zone
// snapshot. Non-finite inputs are rejected rather than propagated into
// training or inference.
func BuildVector(src FeatureSource) ([]float64, error) {
	sensor := func(kind models.SensorKind) float64 {
		return src.SensorMeans[kind]
	}
	env := func(p *float64) float64 {
		if p == nil {
			return 0.0
		}
		return *p
	}

	v := make([]float64, 0, FeatureCount)
	v = append(v, src.Zone.AreaKm2)
	v = append(v, src.Zone.RiskTier.Numeric())
	v = append(v, sensor(models.SensorTemperature))
	v = append(v, sensor(models.SensorHumidity))
	v = append(v, sensor(models.SensorPressure))
	v = append(v, sensor(models.SensorPH))
	v = append(v, sensor(models.SensorSalinity))

	if e := src.Environmental; e != nil {
		v = append(v, env(e.TempMean))
		v = append(v, env(e.WindSpeed))
		v = append(v, env(e.PrecipitationTotal))
		v = append(v, env(e.SeaLevelMean))
		v = append(v, env(e.ElevationMean))
	} else {
		v = append(v, 0, 0, 0, 0, 0)
	}

	for i, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("feature %q is not finite: %v", featureNames[i], f)
		}
	}
	return v, nil
}
