package repository

import (
	"context"
	"database/sql"
	"fmt"

	"erosion-platform/internal/models"
	"erosion-platform/pkg/logging"
)

// InsertModelArtifact inserts a trained model. New artifacts always
// start inactive; activation is a separate transactional step.
func (r *erosionRepository) InsertModelArtifact(ctx context.Context, artifact *models.ModelArtifact) error {
	artifact.Status = models.ModelInactive

	query := `
		INSERT INTO model_artifacts (
			name, version, algorithm, status, feature_names,
			r2, mse, parameters, prediction_count, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		artifact.Name,
		artifact.Version,
		artifact.Algorithm,
		artifact.Status,
		artifact.FeatureNames,
		artifact.R2,
		artifact.MSE,
		artifact.Parameters,
		artifact.PredictionCount,
		artifact.CreatedAt,
	).Scan(&artifact.ID)

	if err != nil {
		return fmt.Errorf("failed to insert model artifact: %w", err)
	}

	return nil
}

// GetActiveModel retrieves the single active model artifact
func (r *erosionRepository) GetActiveModel(ctx context.Context) (*models.ModelArtifact, error) {
	query := `
		SELECT id, name, version, algorithm, status, feature_names,
		       r2, mse, parameters, prediction_count, created_at, last_used_at
		FROM model_artifacts
		WHERE status = 'active'
	`

	var artifact models.ModelArtifact
	err := r.db.GetContext(ctx, "get_active_model", &artifact, query)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "model_artifact",
			ID:       "active",
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get active model: %w", err)
	}

	return &artifact, nil
}

// ActivateModel deactivates any current model and activates the given
// artifact in a single transaction, so exactly one model is ever active.
func (r *erosionRepository) ActivateModel(ctx context.Context, artifactID int64) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE model_artifacts SET status = 'inactive' WHERE status = 'active'"); err != nil {
		return fmt.Errorf("failed to deactivate current model: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE model_artifacts SET status = 'active' WHERE id = $1", artifactID)
	if err != nil {
		return fmt.Errorf("failed to activate model: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return &NotFoundError{
			Resource: "model_artifact",
			ID:       fmt.Sprintf("%d", artifactID),
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info(ctx, "[REPO_ACTIVATE_MODEL] Model activated", logging.Fields{
		"artifact_id": artifactID,
	})

	return nil
}

// RecordModelUse increments the usage counter of an artifact
func (r *erosionRepository) RecordModelUse(ctx context.Context, artifactID int64) error {
	query := `
		UPDATE model_artifacts
		SET prediction_count = prediction_count + 1, last_used_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, "record_model_use", query, artifactID)
	if err != nil {
		return fmt.Errorf("failed to record model use: %w", err)
	}

	return nil
}

// ListModelArtifacts retrieves model artifacts, newest first, without
// the parameters payload
func (r *erosionRepository) ListModelArtifacts(ctx context.Context, limit, offset int) ([]*models.ModelArtifact, error) {
	query := `
		SELECT id, name, version, algorithm, status, feature_names,
		       r2, mse, '{}'::jsonb AS parameters, prediction_count, created_at, last_used_at
		FROM model_artifacts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var artifacts []*models.ModelArtifact
	err := r.db.SelectContext(ctx, "list_model_artifacts", &artifacts, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list model artifacts: %w", err)
	}

	return artifacts, nil
}
