package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"erosion-platform/internal/fusion"
	"erosion-platform/internal/models"
	"erosion-platform/internal/repository"
	"erosion-platform/pkg/logging"
	"erosion-platform/pkg/metrics"
)

// shared across the package; promauto panics on duplicate registration
var (
	testLogger  = logging.NewStructuredLogger("erosion-test", "test", "error")
	testMetrics = metrics.NewCollector("erosion_test")
)

// fakeRepo is an in-memory ErosionRepository for service tests. Window
// queries filter on [start, end) like the real repository; history and
// sensor-mean lookups return staged data as is.
type fakeRepo struct {
	mu sync.Mutex

	zones        map[int64]*models.Zone
	events       map[int64]*models.ExternalEvent
	readings     map[int64][]fusion.ReadingWithKind
	contextEvs   map[int64][]models.ExternalEvent
	history      map[int64][]models.ErosionHistoryRecord
	environments map[int64]*models.EnvironmentalRecord
	sensorMeans  map[int64]map[models.SensorKind]float64

	fusions     []*models.FusionResult
	predictions []*models.Prediction
	alerts      []*models.Alert
	artifacts   []*models.ModelArtifact

	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		zones:        make(map[int64]*models.Zone),
		events:       make(map[int64]*models.ExternalEvent),
		readings:     make(map[int64][]fusion.ReadingWithKind),
		contextEvs:   make(map[int64][]models.ExternalEvent),
		history:      make(map[int64][]models.ErosionHistoryRecord),
		environments: make(map[int64]*models.EnvironmentalRecord),
		sensorMeans:  make(map[int64]map[models.SensorKind]float64),
	}
}

var _ repository.ErosionRepository = (*fakeRepo)(nil)

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) CreateZone(ctx context.Context, zone *models.Zone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	zone.ID = f.id()
	f.zones[zone.ID] = zone
	return nil
}

func (f *fakeRepo) GetZone(ctx context.Context, zoneID int64) (*models.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	zone, ok := f.zones[zoneID]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "zone", ID: fmt.Sprintf("%d", zoneID)}
	}
	return zone, nil
}

func (f *fakeRepo) ListZones(ctx context.Context, limit, offset int) ([]*models.Zone, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zones []*models.Zone
	for _, z := range f.zones {
		zones = append(zones, z)
	}
	return zones, len(zones), nil
}

func (f *fakeRepo) CreateSensor(ctx context.Context, sensor *models.Sensor) error {
	sensor.ID = f.id()
	return nil
}

func (f *fakeRepo) ListSensorsByZone(ctx context.Context, zoneID int64) ([]*models.Sensor, error) {
	return nil, nil
}

func (f *fakeRepo) CreateReading(ctx context.Context, reading *models.SensorReading) error {
	reading.ID = f.id()
	return nil
}

func (f *fakeRepo) GetReadingsInWindow(ctx context.Context, zoneID int64, start, end time.Time) ([]fusion.ReadingWithKind, error) {
	var out []fusion.ReadingWithKind
	for _, r := range f.readings[zoneID] {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetSensorMeans(ctx context.Context, zoneID int64, start, end time.Time) (map[models.SensorKind]float64, error) {
	return f.sensorMeans[zoneID], nil
}

func (f *fakeRepo) CreateExternalEvent(ctx context.Context, event *models.ExternalEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.Normalize()
	event.ID = f.id()
	f.events[event.ID] = event
	return nil
}

func (f *fakeRepo) GetExternalEvent(ctx context.Context, eventID int64) (*models.ExternalEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[eventID]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "external_event", ID: fmt.Sprintf("%d", eventID)}
	}
	return event, nil
}

func (f *fakeRepo) GetEventsInWindow(ctx context.Context, zoneID int64, start, end time.Time) ([]models.ExternalEvent, error) {
	var out []models.ExternalEvent
	for _, e := range f.contextEvs[zoneID] {
		if !e.OccurredAt.Before(start) && e.OccurredAt.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListUnprocessedEvents(ctx context.Context, limit int) ([]*models.ExternalEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var events []*models.ExternalEvent
	for _, e := range f.events {
		if !e.Processed && e.Valid {
			events = append(events, e)
		}
	}
	return events, nil
}

func (f *fakeRepo) MarkEventProcessed(ctx context.Context, eventID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[eventID]
	if !ok {
		return &repository.NotFoundError{Resource: "external_event", ID: fmt.Sprintf("%d", eventID)}
	}
	event.Processed = true
	return nil
}

func (f *fakeRepo) CreateHistoryRecord(ctx context.Context, rec *models.ErosionHistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = f.id()
	f.history[rec.ZoneID] = append(f.history[rec.ZoneID], *rec)
	return nil
}

func (f *fakeRepo) ListHistory(ctx context.Context, zoneID int64, limit int) ([]models.ErosionHistoryRecord, error) {
	records := f.history[zoneID]
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (f *fakeRepo) GetEnvironmentalBefore(ctx context.Context, zoneID int64, at time.Time) (*models.EnvironmentalRecord, error) {
	return f.environments[zoneID], nil
}

func (f *fakeRepo) CreateFusionResult(ctx context.Context, result *models.FusionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	result.ID = f.id()
	f.fusions = append(f.fusions, result)
	return nil
}

func (f *fakeRepo) CompleteFusionResult(ctx context.Context, result *models.FusionResult) error {
	return nil
}

func (f *fakeRepo) ListFusionResults(ctx context.Context, filter repository.FusionFilter) ([]*models.FusionResult, int, error) {
	return f.fusions, len(f.fusions), nil
}

func (f *fakeRepo) CreatePrediction(ctx context.Context, pred *models.Prediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pred.Normalize()
	pred.ID = f.id()
	f.predictions = append(f.predictions, pred)
	return nil
}

func (f *fakeRepo) ListPredictions(ctx context.Context, filter repository.PredictionFilter) ([]*models.Prediction, int, error) {
	return f.predictions, len(f.predictions), nil
}

func (f *fakeRepo) CreateAlert(ctx context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert.ID = f.id()
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeRepo) ListAlerts(ctx context.Context, filter repository.AlertFilter) ([]*models.Alert, int, error) {
	return f.alerts, len(f.alerts), nil
}

func (f *fakeRepo) ResolveAlert(ctx context.Context, alertID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.ID == alertID {
			a.Active = false
			a.Resolved = true
			return nil
		}
	}
	return &repository.NotFoundError{Resource: "alert", ID: fmt.Sprintf("%d", alertID)}
}

func (f *fakeRepo) InsertModelArtifact(ctx context.Context, artifact *models.ModelArtifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	artifact.Status = models.ModelInactive
	artifact.ID = f.id()
	f.artifacts = append(f.artifacts, artifact)
	return nil
}

func (f *fakeRepo) GetActiveModel(ctx context.Context) (*models.ModelArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.artifacts {
		if a.Status == models.ModelActive {
			return a, nil
		}
	}
	return nil, &repository.NotFoundError{Resource: "model_artifact", ID: "active"}
}

func (f *fakeRepo) ActivateModel(ctx context.Context, artifactID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var target *models.ModelArtifact
	for _, a := range f.artifacts {
		if a.ID == artifactID {
			target = a
		}
	}
	if target == nil {
		return &repository.NotFoundError{Resource: "model_artifact", ID: fmt.Sprintf("%d", artifactID)}
	}
	for _, a := range f.artifacts {
		a.Status = models.ModelInactive
	}
	target.Status = models.ModelActive
	return nil
}

func (f *fakeRepo) RecordModelUse(ctx context.Context, artifactID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.artifacts {
		if a.ID == artifactID {
			a.PredictionCount++
		}
	}
	return nil
}

func (f *fakeRepo) ListModelArtifacts(ctx context.Context, limit, offset int) ([]*models.ModelArtifact, error) {
	return f.artifacts, nil
}

func (f *fakeRepo) HealthCheck(ctx context.Context) error {
	return nil
}

// reading builds a valid staged reading for window queries
func reading(kind models.SensorKind, value float64, ts time.Time) fusion.ReadingWithKind {
	return fusion.ReadingWithKind{
		SensorReading: models.SensorReading{Value: value, Valid: true, Timestamp: ts},
		Kind:          kind,
	}
}

// fakeNotifier records delivered alerts
type fakeNotifier struct {
	mu        sync.Mutex
	delivered []*models.Alert
}

func (n *fakeNotifier) Notify(ctx context.Context, alert *models.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, alert)
	return nil
}
