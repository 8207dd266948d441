package repository

import (
	"context"
	"fmt"

	"erosion-platform/internal/models"
)

// CreateFusionResult inserts a pending fusion row
func (r *erosionRepository) CreateFusionResult(ctx context.Context, result *models.FusionResult) error {
	query := `
		INSERT INTO fusion_results (
			zone_id, event_id, period_start, period_end,
			reading_count, event_count, score, probability,
			dominant_factors, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		result.ZoneID,
		result.EventID,
		result.PeriodStart,
		result.PeriodEnd,
		result.ReadingCount,
		result.EventCount,
		result.Score,
		result.Probability,
		result.DominantFactors,
		result.Status,
		result.CreatedAt,
	).Scan(&result.ID)

	if err != nil {
		return fmt.Errorf("failed to create fusion result: %w", err)
	}

	return nil
}

// CompleteFusionResult stores the computed scores and flips the status
func (r *erosionRepository) CompleteFusionResult(ctx context.Context, result *models.FusionResult) error {
	query := `
		UPDATE fusion_results SET
			reading_count = $2,
			event_count = $3,
			score = $4,
			probability = $5,
			dominant_factors = $6,
			status = $7,
			completed_at = $8
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, "complete_fusion", query,
		result.ID,
		result.ReadingCount,
		result.EventCount,
		result.Score,
		result.Probability,
		result.DominantFactors,
		result.Status,
		result.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to complete fusion result: %w", err)
	}

	return nil
}

// ListFusionResults retrieves fusion results with filtering and pagination
func (r *erosionRepository) ListFusionResults(ctx context.Context, filter FusionFilter) ([]*models.FusionResult, int, error) {
	query := `
		SELECT id, zone_id, event_id, period_start, period_end,
		       reading_count, event_count, score, probability,
		       dominant_factors, status, created_at, completed_at
		FROM fusion_results
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.ZoneID != nil {
		query += fmt.Sprintf(" AND zone_id = $%d", argNum)
		args = append(args, *filter.ZoneID)
		argNum++
	}

	if filter.EventID != nil {
		query += fmt.Sprintf(" AND event_id = $%d", argNum)
		args = append(args, *filter.EventID)
		argNum++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, *filter.Status)
		argNum++
	}

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_fusions", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count fusion results: %w", err)
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var results []*models.FusionResult
	err = r.db.SelectContext(ctx, "list_fusions", &results, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list fusion results: %w", err)
	}

	return results, totalCount, nil
}

// CreatePrediction inserts a prediction. The confidence tier is always
// re-derived before insert.
func (r *erosionRepository) CreatePrediction(ctx context.Context, pred *models.Prediction) error {
	pred.Normalize()

	query := `
		INSERT INTO predictions (
			zone_id, fusion_id, erosion_predicted, risk_level,
			confidence_pct, confidence_tier, rate_per_year_m, horizon_days,
			event_factor, sensor_factor, history_factor,
			recommendations, urgent_actions, model_used, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		pred.ZoneID,
		pred.FusionID,
		pred.ErosionPredicted,
		pred.RiskLevel,
		pred.ConfidencePct,
		pred.ConfidenceTier,
		pred.RatePerYearM,
		pred.HorizonDays,
		pred.EventFactor,
		pred.SensorFactor,
		pred.HistoryFactor,
		pred.Recommendations,
		pred.UrgentActions,
		pred.ModelUsed,
		pred.CreatedAt,
	).Scan(&pred.ID)

	if err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}

	return nil
}

// ListPredictions retrieves predictions with filtering and pagination
func (r *erosionRepository) ListPredictions(ctx context.Context, filter PredictionFilter) ([]*models.Prediction, int, error) {
	query := `
		SELECT id, zone_id, fusion_id, erosion_predicted, risk_level,
		       confidence_pct, confidence_tier, rate_per_year_m, horizon_days,
		       event_factor, sensor_factor, history_factor,
		       recommendations, urgent_actions, model_used, created_at
		FROM predictions
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.ZoneID != nil {
		query += fmt.Sprintf(" AND zone_id = $%d", argNum)
		args = append(args, *filter.ZoneID)
		argNum++
	}

	if filter.RiskLevel != nil {
		query += fmt.Sprintf(" AND risk_level = $%d", argNum)
		args = append(args, *filter.RiskLevel)
		argNum++
	}

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_predictions", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count predictions: %w", err)
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var predictions []*models.Prediction
	err = r.db.SelectContext(ctx, "list_predictions", &predictions, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list predictions: %w", err)
	}

	return predictions, totalCount, nil
}

// CreateAlert inserts a new alert
func (r *erosionRepository) CreateAlert(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (
			zone_id, prediction_id, event_id, kind, severity,
			title, description, active, resolved, required_actions, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		alert.ZoneID,
		alert.PredictionID,
		alert.EventID,
		alert.Kind,
		alert.Severity,
		alert.Title,
		alert.Description,
		alert.Active,
		alert.Resolved,
		alert.RequiredActions,
		alert.CreatedAt,
	).Scan(&alert.ID)

	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	r.metrics.RecordAlert(string(alert.Kind), string(alert.Severity))

	return nil
}

// ListAlerts retrieves alerts with filtering and pagination
func (r *erosionRepository) ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, int, error) {
	query := `
		SELECT id, zone_id, prediction_id, event_id, kind, severity,
		       title, description, active, resolved, required_actions,
		       created_at, resolved_at
		FROM alerts
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.ZoneID != nil {
		query += fmt.Sprintf(" AND zone_id = $%d", argNum)
		args = append(args, *filter.ZoneID)
		argNum++
	}

	if filter.Severity != nil {
		query += fmt.Sprintf(" AND severity = $%d", argNum)
		args = append(args, *filter.Severity)
		argNum++
	}

	if filter.ActiveOnly {
		query += " AND active = true AND resolved = false"
	}

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_alerts", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var alerts []*models.Alert
	err = r.db.SelectContext(ctx, "list_alerts", &alerts, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}

	return alerts, totalCount, nil
}

// ResolveAlert marks an alert as resolved
func (r *erosionRepository) ResolveAlert(ctx context.Context, alertID int64) error {
	query := `
		UPDATE alerts
		SET active = false, resolved = true, resolved_at = NOW()
		WHERE id = $1 AND resolved = false
	`

	result, err := r.db.ExecContext(ctx, "resolve_alert", query, alertID)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return &NotFoundError{
			Resource: "alert",
			ID:       fmt.Sprintf("%d", alertID),
		}
	}
	return nil
}
