package notify

import (
	"context"

	"erosion-platform/internal/models"
	"erosion-platform/pkg/logging"
)

// Notifier delivers raised alerts to an external channel.
type Notifier interface {
	Notify(ctx context.Context, alert *models.Alert) error
}

// LogNotifier writes alerts to the structured log. It is the default
// delivery channel; SMS and email gateways plug in behind the same
// interface.
type LogNotifier struct {
	logger *logging.StructuredLogger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *logging.StructuredLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the alert at a level matching its severity
func (n *LogNotifier) Notify(ctx context.Context, alert *models.Alert) error {
	fields := logging.Fields{
		"alert_id":  alert.ID,
		"zone_id":   alert.ZoneID,
		"kind":      alert.Kind,
		"severity":  alert.Severity,
		"title":     alert.Title,
		"actions":   []string(alert.RequiredActions),
	}

	switch alert.Severity {
	case models.SeverityCritical:
		n.logger.Error(ctx, "[NOTIFY] Critical alert raised", fields, nil)
	case models.SeverityAlert:
		n.logger.Warn(ctx, "[NOTIFY] Alert raised", fields)
	default:
		n.logger.Info(ctx, "[NOTIFY] Alert raised", fields)
	}

	return nil
}
