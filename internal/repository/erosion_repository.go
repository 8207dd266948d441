package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"erosion-platform/internal/fusion"
	"erosion-platform/internal/models"
	"erosion-platform/pkg/database"
	"erosion-platform/pkg/logging"
	"erosion-platform/pkg/metrics"
)

// ErosionRepository provides data access for the erosion platform
type ErosionRepository interface {
	// Zone operations
	CreateZone(ctx context.Context, zone *models.Zone) error
	GetZone(ctx context.Context, zoneID int64) (*models.Zone, error)
	ListZones(ctx context.Context, limit, offset int) ([]*models.Zone, int, error)

	// Sensor operations
	CreateSensor(ctx context.Context, sensor *models.Sensor) error
	ListSensorsByZone(ctx context.Context, zoneID int64) ([]*models.Sensor, error)
	CreateReading(ctx context.Context, reading *models.SensorReading) error
	GetReadingsInWindow(ctx context.Context, zoneID int64, start, end time.Time) ([]fusion.ReadingWithKind, error)
	GetSensorMeans(ctx context.Context, zoneID int64, start, end time.Time) (map[models.SensorKind]float64, error)

	// External event operations
	CreateExternalEvent(ctx context.Context, event *models.ExternalEvent) error
	GetExternalEvent(ctx context.Context, eventID int64) (*models.ExternalEvent, error)
	GetEventsInWindow(ctx context.Context, zoneID int64, start, end time.Time) ([]models.ExternalEvent, error)
	ListUnprocessedEvents(ctx context.Context, limit int) ([]*models.ExternalEvent, error)
	MarkEventProcessed(ctx context.Context, eventID int64) error

	// History and environment
	CreateHistoryRecord(ctx context.Context, rec *models.ErosionHistoryRecord) error
	ListHistory(ctx context.Context, zoneID int64, limit int) ([]models.ErosionHistoryRecord, error)
	GetEnvironmentalBefore(ctx context.Context, zoneID int64, at time.Time) (*models.EnvironmentalRecord, error)

	// Analysis results
	CreateFusionResult(ctx context.Context, result *models.FusionResult) error
	CompleteFusionResult(ctx context.Context, result *models.FusionResult) error
	ListFusionResults(ctx context.Context, filter FusionFilter) ([]*models.FusionResult, int, error)
	CreatePrediction(ctx context.Context, pred *models.Prediction) error
	ListPredictions(ctx context.Context, filter PredictionFilter) ([]*models.Prediction, int, error)
	CreateAlert(ctx context.Context, alert *models.Alert) error
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, int, error)
	ResolveAlert(ctx context.Context, alertID int64) error

	// Model artifacts
	InsertModelArtifact(ctx context.Context, artifact *models.ModelArtifact) error
	GetActiveModel(ctx context.Context) (*models.ModelArtifact, error)
	ActivateModel(ctx context.Context, artifactID int64) error
	RecordModelUse(ctx context.Context, artifactID int64) error
	ListModelArtifacts(ctx context.Context, limit, offset int) ([]*models.ModelArtifact, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// FusionFilter defines filters for querying fusion results
type FusionFilter struct {
	ZoneID  *int64
	EventID *int64
	Status  *models.FusionStatus
	Limit   int
	Offset  int
}

// PredictionFilter defines filters for querying predictions
type PredictionFilter struct {
	ZoneID    *int64
	RiskLevel *models.RiskLevel
	Limit     int
	Offset    int
}

// AlertFilter defines filters for querying alerts
type AlertFilter struct {
	ZoneID     *int64
	Severity   *models.AlertSeverity
	ActiveOnly bool
	Limit      int
	Offset     int
}

// erosionRepository implements ErosionRepository
type erosionRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewErosionRepository creates a new erosion repository
func NewErosionRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ErosionRepository {
	return &erosionRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateZone creates a new monitored zone
func (r *erosionRepository) CreateZone(ctx context.Context, zone *models.Zone) error {
	query := `
		INSERT INTO zones (name, area_km2, risk_tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		zone.Name,
		zone.AreaKm2,
		zone.RiskTier,
		zone.CreatedAt,
		zone.UpdatedAt,
	).Scan(&zone.ID)

	if err != nil {
		return fmt.Errorf("failed to create zone: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_ZONE] Zone created", logging.Fields{
		"zone_id": zone.ID,
		"name":    zone.Name,
	})

	return nil
}

// GetZone retrieves a zone by ID
func (r *erosionRepository) GetZone(ctx context.Context, zoneID int64) (*models.Zone, error) {
	query := `
		SELECT id, name, area_km2, risk_tier, created_at, updated_at
		FROM zones
		WHERE id = $1
	`

	var zone models.Zone
	err := r.db.GetContext(ctx, "get_zone", &zone, query, zoneID)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "zone",
			ID:       fmt.Sprintf("%d", zoneID),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}

	return &zone, nil
}

// ListZones retrieves zones with pagination
func (r *erosionRepository) ListZones(ctx context.Context, limit, offset int) ([]*models.Zone, int, error) {
	var totalCount int
	err := r.db.GetContext(ctx, "count_zones", &totalCount, "SELECT COUNT(*) FROM zones")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count zones: %w", err)
	}

	query := `
		SELECT id, name, area_km2, risk_tier, created_at, updated_at
		FROM zones
		ORDER BY id
		LIMIT $1 OFFSET $2
	`

	var zones []*models.Zone
	err = r.db.SelectContext(ctx, "list_zones", &zones, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list zones: %w", err)
	}

	return zones, totalCount, nil
}

// CreateSensor creates a new sensor attached to a zone
func (r *erosionRepository) CreateSensor(ctx context.Context, sensor *models.Sensor) error {
	query := `
		INSERT INTO sensors (zone_id, name, kind, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		sensor.ZoneID,
		sensor.Name,
		sensor.Kind,
		sensor.Status,
		sensor.CreatedAt,
	).Scan(&sensor.ID)

	if err != nil {
		return fmt.Errorf("failed to create sensor: %w", err)
	}

	return nil
}

// ListSensorsByZone retrieves all sensors for a zone
func (r *erosionRepository) ListSensorsByZone(ctx context.Context, zoneID int64) ([]*models.Sensor, error) {
	query := `
		SELECT id, zone_id, name, kind, status, created_at
		FROM sensors
		WHERE zone_id = $1
		ORDER BY id
	`

	var sensors []*models.Sensor
	err := r.db.SelectContext(ctx, "list_sensors", &sensors, query, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}

	return sensors, nil
}

// CreateReading creates a new sensor reading
func (r *erosionRepository) CreateReading(ctx context.Context, reading *models.SensorReading) error {
	query := `
		INSERT INTO sensor_readings (sensor_id, value, unit, timestamp, valid, quality)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		reading.SensorID,
		reading.Value,
		reading.Unit,
		reading.Timestamp,
		reading.Valid,
		reading.Quality,
	).Scan(&reading.ID)

	if err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}

	return nil
}

// GetReadingsInWindow retrieves valid readings for a zone within a time
// window, joined with the kind of the producing sensor
func (r *erosionRepository) GetReadingsInWindow(ctx context.Context, zoneID int64, start, end time.Time) ([]fusion.ReadingWithKind, error) {
	query := `
		SELECT sr.id, sr.sensor_id, sr.value, sr.unit, sr.timestamp, sr.valid, sr.quality,
		       s.kind
		FROM sensor_readings sr
		JOIN sensors s ON s.id = sr.sensor_id
		WHERE s.zone_id = $1
		  AND sr.timestamp >= $2
		  AND sr.timestamp < $3
		  AND sr.valid = true
		ORDER BY sr.timestamp
	`

	var readings []fusion.ReadingWithKind
	err := r.db.SelectContext(ctx, "get_readings_window", &readings, query, zoneID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get readings: %w", err)
	}

	return readings, nil
}

// GetSensorMeans computes per-kind mean values for a zone window,
// used for feature vector assembly
func (r *erosionRepository) GetSensorMeans(ctx context.Context, zoneID int64, start, end time.Time) (map[models.SensorKind]float64, error) {
	query := `
		SELECT s.kind, AVG(sr.value) AS mean_value
		FROM sensor_readings sr
		JOIN sensors s ON s.id = sr.sensor_id
		WHERE s.zone_id = $1
		  AND sr.timestamp >= $2
		  AND sr.timestamp < $3
		  AND sr.valid = true
		GROUP BY s.kind
	`

	var rows []struct {
		Kind      models.SensorKind `db:"kind"`
		MeanValue float64           `db:"mean_value"`
	}
	err := r.db.SelectContext(ctx, "get_sensor_means", &rows, query, zoneID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get sensor means: %w", err)
	}

	means := make(map[models.SensorKind]float64, len(rows))
	for _, row := range rows {
		means[row.Kind] = row.MeanValue
	}
	return means, nil
}

// CreateExternalEvent creates a new external event. The intensity
// category is always re-derived before insert.
func (r *erosionRepository) CreateExternalEvent(ctx context.Context, event *models.ExternalEvent) error {
	event.Normalize()

	query := `
		INSERT INTO external_events (
			zone_id, kind, intensity, intensity_category, description,
			occurred_at, source, duration_minutes, impact_radius_km,
			simulation, valid, processed, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		event.ZoneID,
		event.Kind,
		event.Intensity,
		event.IntensityCategory,
		event.Description,
		event.OccurredAt,
		event.Source,
		event.DurationMinutes,
		event.ImpactRadiusKm,
		event.Simulation,
		event.Valid,
		event.Processed,
		event.CreatedAt,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("failed to create external event: %w", err)
	}

	return nil
}

// GetExternalEvent retrieves an external event by ID
func (r *erosionRepository) GetExternalEvent(ctx context.Context, eventID int64) (*models.ExternalEvent, error) {
	query := `
		SELECT id, zone_id, kind, intensity, intensity_category, description,
		       occurred_at, source, duration_minutes, impact_radius_km,
		       simulation, valid, processed, created_at
		FROM external_events
		WHERE id = $1
	`

	var event models.ExternalEvent
	err := r.db.GetContext(ctx, "get_event", &event, query, eventID)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "external_event",
			ID:       fmt.Sprintf("%d", eventID),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get external event: %w", err)
	}

	return &event, nil
}

// GetEventsInWindow retrieves valid events for a zone within a window
func (r *erosionRepository) GetEventsInWindow(ctx context.Context, zoneID int64, start, end time.Time) ([]models.ExternalEvent, error) {
	query := `
		SELECT id, zone_id, kind, intensity, intensity_category, description,
		       occurred_at, source, duration_minutes, impact_radius_km,
		       simulation, valid, processed, created_at
		FROM external_events
		WHERE zone_id = $1
		  AND occurred_at >= $2
		  AND occurred_at < $3
		  AND valid = true
		ORDER BY occurred_at
	`

	var events []models.ExternalEvent
	err := r.db.SelectContext(ctx, "get_events_window", &events, query, zoneID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	return events, nil
}

// ListUnprocessedEvents retrieves valid events that have not been analyzed yet
func (r *erosionRepository) ListUnprocessedEvents(ctx context.Context, limit int) ([]*models.ExternalEvent, error) {
	query := `
		SELECT id, zone_id, kind, intensity, intensity_category, description,
		       occurred_at, source, duration_minutes, impact_radius_km,
		       simulation, valid, processed, created_at
		FROM external_events
		WHERE processed = false AND valid = true
		ORDER BY occurred_at
		LIMIT $1
	`

	var events []*models.ExternalEvent
	err := r.db.SelectContext(ctx, "list_unprocessed_events", &events, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed events: %w", err)
	}

	return events, nil
}

// MarkEventProcessed flags an event as analyzed
func (r *erosionRepository) MarkEventProcessed(ctx context.Context, eventID int64) error {
	result, err := r.db.ExecContext(ctx, "mark_event_processed",
		"UPDATE external_events SET processed = true WHERE id = $1", eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return &NotFoundError{
			Resource: "external_event",
			ID:       fmt.Sprintf("%d", eventID),
		}
	}
	return nil
}

// CreateHistoryRecord creates a new erosion history measurement
func (r *erosionRepository) CreateHistoryRecord(ctx context.Context, rec *models.ErosionHistoryRecord) error {
	query := `
		INSERT INTO erosion_history (zone_id, measured_at, rate_per_year_m, method, precision_m, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		rec.ZoneID,
		rec.MeasuredAt,
		rec.RatePerYearM,
		rec.Method,
		rec.PrecisionM,
		rec.CreatedAt,
	).Scan(&rec.ID)

	if err != nil {
		return fmt.Errorf("failed to create history record: %w", err)
	}

	return nil
}

// ListHistory retrieves the most recent erosion measurements for a zone
func (r *erosionRepository) ListHistory(ctx context.Context, zoneID int64, limit int) ([]models.ErosionHistoryRecord, error) {
	query := `
		SELECT id, zone_id, measured_at, rate_per_year_m, method, precision_m, created_at
		FROM erosion_history
		WHERE zone_id = $1
		ORDER BY measured_at DESC
		LIMIT $2
	`

	var records []models.ErosionHistoryRecord
	err := r.db.SelectContext(ctx, "list_history", &records, query, zoneID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	return records, nil
}

// GetEnvironmentalBefore retrieves the latest environmental record
// ending at or before the given time
func (r *erosionRepository) GetEnvironmentalBefore(ctx context.Context, zoneID int64, at time.Time) (*models.EnvironmentalRecord, error) {
	query := `
		SELECT id, zone_id, period_start, period_end,
		       temp_mean, wind_speed, precipitation_total, sea_level_mean, elevation_mean,
		       created_at
		FROM environmental_records
		WHERE zone_id = $1 AND period_end <= $2
		ORDER BY period_end DESC
		LIMIT 1
	`

	var rec models.EnvironmentalRecord
	err := r.db.GetContext(ctx, "get_environmental", &rec, query, zoneID, at)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get environmental record: %w", err)
	}

	return &rec, nil
}

// HealthCheck performs a repository health check
func (r *erosionRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
