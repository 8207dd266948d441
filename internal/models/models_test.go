package models

import (
	"testing"
	"time"
)

// TestEventNormalize tests intensity category derivation
func TestEventNormalize(t *testing.T) {
	tests := []struct {
		name      string
		intensity float64
		want      IntensityCategory
	}{
		{"zero intensity", 0, IntensityLow},
		{"boundary low", 25, IntensityLow},
		{"just above low", 25.1, IntensityModerate},
		{"boundary moderate", 50, IntensityModerate},
		{"boundary strong", 75, IntensityStrong},
		{"extreme", 95, IntensityExtreme},
		{"max", 100, IntensityExtreme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &ExternalEvent{Intensity: tt.intensity}
			e.Normalize()
			if e.IntensityCategory != tt.want {
				t.Errorf("Normalize() category = %v, want %v", e.IntensityCategory, tt.want)
			}
		})
	}
}

// TestEventRiskLevel tests risk level derivation from intensity
func TestEventRiskLevel(t *testing.T) {
	tests := []struct {
		intensity float64
		want      RiskLevel
	}{
		{95, RiskCritical},
		{80, RiskCritical},
		{79.9, RiskHigh},
		{60, RiskHigh},
		{59.9, RiskModerate},
		{40, RiskModerate},
		{39.9, RiskLow},
		{0, RiskLow},
	}

	for _, tt := range tests {
		e := &ExternalEvent{Intensity: tt.intensity}
		if got := e.RiskLevel(); got != tt.want {
			t.Errorf("RiskLevel() for intensity %.1f = %v, want %v", tt.intensity, got, tt.want)
		}
	}
}

// TestDeriveConfidenceTier tests confidence tier bucketing
func TestDeriveConfidenceTier(t *testing.T) {
	tests := []struct {
		pct  float64
		want ConfidenceTier
	}{
		{0, ConfidenceLow},
		{59.9, ConfidenceLow},
		{60, ConfidenceMedium},
		{79.9, ConfidenceMedium},
		{80, ConfidenceHigh},
		{94.9, ConfidenceHigh},
		{95, ConfidenceVeryHigh},
		{100, ConfidenceVeryHigh},
	}

	for _, tt := range tests {
		if got := DeriveConfidenceTier(tt.pct); got != tt.want {
			t.Errorf("DeriveConfidenceTier(%.1f) = %v, want %v", tt.pct, got, tt.want)
		}
	}
}

// TestRiskLevelNumeric tests feature encoding of risk tiers
func TestRiskLevelNumeric(t *testing.T) {
	tests := []struct {
		level RiskLevel
		want  float64
	}{
		{RiskLow, 1.0},
		{RiskModerate, 2.0},
		{RiskHigh, 3.0},
		{RiskCritical, 4.0},
		{RiskLevel("unknown"), 1.0},
	}

	for _, tt := range tests {
		if got := tt.level.Numeric(); got != tt.want {
			t.Errorf("Numeric() for %q = %v, want %v", tt.level, got, tt.want)
		}
	}
}

// TestExternalEventValidate tests event validation
func TestExternalEventValidate(t *testing.T) {
	now := time.Now()
	negDuration := -5
	negRadius := -1.0

	valid := func() *ExternalEvent {
		return &ExternalEvent{
			ZoneID:     1,
			Kind:       EventStorm,
			Intensity:  60,
			OccurredAt: now,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ExternalEvent)
		wantErr string
	}{
		{"valid event", func(e *ExternalEvent) {}, ""},
		{"missing zone", func(e *ExternalEvent) { e.ZoneID = 0 }, "zone_id must be positive"},
		{"unknown kind", func(e *ExternalEvent) { e.Kind = "earthquake" }, "unknown event kind"},
		{"intensity too high", func(e *ExternalEvent) { e.Intensity = 101 }, "intensity must be within [0, 100]"},
		{"negative intensity", func(e *ExternalEvent) { e.Intensity = -1 }, "intensity must be within [0, 100]"},
		{"missing occurred_at", func(e *ExternalEvent) { e.OccurredAt = time.Time{} }, "occurred_at is required"},
		{"negative duration", func(e *ExternalEvent) { e.DurationMinutes = &negDuration }, "duration_minutes cannot be negative"},
		{"negative radius", func(e *ExternalEvent) { e.ImpactRadiusKm = &negRadius }, "impact_radius_km cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			err := e.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if err.Error() != tt.wantErr {
				t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
			}
			var vErr *ValidationError
			if ve, ok := err.(*ValidationError); ok {
				vErr = ve
			} else {
				t.Fatalf("Validate() error type = %T, want *ValidationError", err)
			}
			if vErr.IsTransient() {
				t.Error("validation errors should not be transient")
			}
		})
	}
}
