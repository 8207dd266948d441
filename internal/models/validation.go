package models

import "fmt"

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

var validEventKinds = map[EventKind]bool{
	EventRain:            true,
	EventStorm:           true,
	EventHighWind:        true,
	EventWave:            true,
	EventExceptionalTide: true,
	EventDrought:         true,
	EventFlood:           true,
	EventTsunami:         true,
	EventHurricane:       true,
	EventCyclone:         true,
	EventOther:           true,
}

// Validate checks an incoming external event before persistence.
func (e *ExternalEvent) Validate() error {
	if e.ZoneID <= 0 {
		return &ValidationError{
			Field:   "zone_id",
			Value:   fmt.Sprintf("%d", e.ZoneID),
			Message: "zone_id must be positive",
		}
	}
	if !validEventKinds[e.Kind] {
		return &ValidationError{
			Field:   "kind",
			Value:   string(e.Kind),
			Message: "unknown event kind",
		}
	}
	if e.Intensity < 0 || e.Intensity > 100 {
		return &ValidationError{
			Field:   "intensity",
			Value:   fmt.Sprintf("%.2f", e.Intensity),
			Message: "intensity must be within [0, 100]",
		}
	}
	if e.OccurredAt.IsZero() {
		return &ValidationError{
			Field:   "occurred_at",
			Value:   "",
			Message: "occurred_at is required",
		}
	}
	if e.DurationMinutes != nil && *e.DurationMinutes < 0 {
		return &ValidationError{
			Field:   "duration_minutes",
			Value:   fmt.Sprintf("%d", *e.DurationMinutes),
			Message: "duration_minutes cannot be negative",
		}
	}
	if e.ImpactRadiusKm != nil && *e.ImpactRadiusKm < 0 {
		return &ValidationError{
			Field:   "impact_radius_km",
			Value:   fmt.Sprintf("%.2f", *e.ImpactRadiusKm),
			Message: "impact_radius_km cannot be negative",
		}
	}
	return nil
}

// Validate checks a sensor reading before persistence.
func (r *SensorReading) Validate() error {
	if r.SensorID <= 0 {
		return &ValidationError{
			Field:   "sensor_id",
			Value:   fmt.Sprintf("%d", r.SensorID),
			Message: "sensor_id must be positive",
		}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{
			Field:   "timestamp",
			Value:   "",
			Message: "timestamp is required",
		}
	}
	return nil
}
