package fusion

import (
	"fmt"

	"erosion-platform/internal/models"
)

// extremeEventThreshold triggers an alert regardless of the prediction.
const extremeEventThreshold = 90.0

// DecideAlerts evaluates alerting rules for one fusion run and returns
// the alerts to raise. Alerts come back unpersisted; the caller fills
// in prediction and event references.
func DecideAlerts(zoneID int64, trigger *models.ExternalEvent, outcome Outcome) []models.Alert {
	var alerts []models.Alert

	if trigger != nil && trigger.Intensity > extremeEventThreshold {
		alerts = append(alerts, models.Alert{
			ZoneID:   zoneID,
			Kind:     models.AlertExtremeEvent,
			Severity: models.SeverityCritical,
			Title:    fmt.Sprintf("Extreme %s event detected", trigger.Kind),
			Description: fmt.Sprintf(
				"A %s event of intensity %.1f was recorded, exceeding the extreme threshold of %.0f.",
				trigger.Kind, trigger.Intensity, extremeEventThreshold),
			Active: true,
			RequiredActions: []string{
				"Establish a 24-hour monitoring watch",
				"Prepare evacuation procedures for exposed areas",
				"Alert local authorities",
			},
		})
	}

	if outcome.ErosionPredicted &&
		(outcome.RiskLevel == models.RiskHigh || outcome.RiskLevel == models.RiskCritical) {
		severity := models.SeverityAlert
		if outcome.RiskLevel == models.RiskCritical {
			severity = models.SeverityCritical
		}
		alerts = append(alerts, models.Alert{
			ZoneID:   zoneID,
			Kind:     models.AlertErosionPredicted,
			Severity: severity,
			Title:    fmt.Sprintf("Erosion predicted at %s risk", outcome.RiskLevel),
			Description: fmt.Sprintf(
				"Analysis predicts active erosion at %.2f m/year with %.0f%% confidence over the next %d days.",
				outcome.RatePerYearM, outcome.ConfidencePct, HorizonDays),
			Active:          true,
			RequiredActions: append([]string(nil), outcome.UrgentActions...),
		})
	}

	return alerts
}
