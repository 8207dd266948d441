package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"erosion-platform/internal/ml"
	"erosion-platform/internal/models"
	"erosion-platform/internal/repository"
	"erosion-platform/internal/services"
	"erosion-platform/pkg/logging"
	"erosion-platform/pkg/metrics"
)

// ErosionHandler handles erosion API endpoints
type ErosionHandler struct {
	repo             repository.ErosionRepository
	analysisService  *services.AnalysisService
	trainingService  *services.TrainingService
	inferenceService *services.InferenceService
	analysisLookback time.Duration
	logger           *logging.StructuredLogger
	metrics          *metrics.Collector
}

// NewErosionHandler creates a new erosion handler
func NewErosionHandler(
	repo repository.ErosionRepository,
	analysisService *services.AnalysisService,
	trainingService *services.TrainingService,
	inferenceService *services.InferenceService,
	analysisLookback time.Duration,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ErosionHandler {
	return &ErosionHandler{
		repo:             repo,
		analysisService:  analysisService,
		trainingService:  trainingService,
		inferenceService: inferenceService,
		analysisLookback: analysisLookback,
		logger:           logger,
		metrics:          metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// CreateEvent handles POST /api/events
func (h *ErosionHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/events").Observe(duration.Seconds())
	}()

	var event models.ExternalEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.sendError(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := event.Validate(); err != nil {
		h.metrics.RecordAPIError("validation_error", "/api/events")
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := h.repo.GetZone(ctx, event.ZoneID); err != nil {
		var nf *repository.NotFoundError
		if errors.As(err, &nf) {
			h.sendError(w, r, nf.Error(), http.StatusNotFound)
			return
		}
		h.sendError(w, r, "failed to verify zone", http.StatusInternalServerError)
		return
	}

	event.Valid = true
	event.Processed = false
	event.CreatedAt = time.Now().UTC()

	if err := h.repo.CreateExternalEvent(ctx, &event); err != nil {
		h.logger.Error(ctx, "[API_CREATE_EVENT_ERROR] Failed to create event", logging.Fields{
			"zone_id": event.ZoneID,
			"kind":    event.Kind,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/events")
		h.sendError(w, r, "failed to create event", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/events", "POST", "201")
	h.sendJSON(w, event, http.StatusCreated)
}

// AnalyzeEvent handles POST /api/analyses/events/{id}
func (h *ErosionHandler) AnalyzeEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/analyses/events").Observe(duration.Seconds())
	}()

	eventID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	outcome, err := h.analysisService.AnalyzeEvent(ctx, eventID)
	if err != nil {
		var nf *repository.NotFoundError
		if errors.As(err, &nf) {
			h.sendError(w, r, nf.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error(ctx, "[API_ANALYZE_EVENT_ERROR] Event analysis failed", logging.Fields{
			"event_id": eventID,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/analyses/events")
		h.sendError(w, r, "analysis failed", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/analyses/events", "POST", "200")
	h.sendJSON(w, outcome, http.StatusOK)
}

// AnalyzeZone handles POST /api/analyses/zones/{id}
func (h *ErosionHandler) AnalyzeZone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/analyses/zones").Observe(duration.Seconds())
	}()

	zoneID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	lookback := h.analysisLookback
	if hoursStr := r.URL.Query().Get("lookback_hours"); hoursStr != "" {
		hours, err := strconv.Atoi(hoursStr)
		if err != nil || hours <= 0 || hours > 24*30 {
			h.sendError(w, r, "invalid lookback_hours, expected integer between 1 and 720", http.StatusBadRequest)
			return
		}
		lookback = time.Duration(hours) * time.Hour
	}

	outcome, err := h.analysisService.AnalyzeZone(ctx, zoneID, lookback)
	if err != nil {
		var nf *repository.NotFoundError
		if errors.As(err, &nf) {
			h.sendError(w, r, nf.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error(ctx, "[API_ANALYZE_ZONE_ERROR] Zone analysis failed", logging.Fields{
			"zone_id": zoneID,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/analyses/zones")
		h.sendError(w, r, "analysis failed", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/analyses/zones", "POST", "200")
	h.sendJSON(w, outcome, http.StatusOK)
}

// TrainModels handles POST /api/models/train
func (h *ErosionHandler) TrainModels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.trainingService.TrainAndActivate(ctx)
	if err != nil {
		if errors.Is(err, ml.ErrInsufficientData) {
			h.sendError(w, r, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error(ctx, "[API_TRAIN_ERROR] Model training failed", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/models/train")
		h.sendError(w, r, "training failed", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/models/train", "POST", "200")
	h.sendJSON(w, report, http.StatusOK)
}

// PredictZoneRate handles POST /api/zones/{id}/predictions
func (h *ErosionHandler) PredictZoneRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	zoneID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	horizonDays := services.DefaultHorizonDays
	if raw := r.URL.Query().Get("horizon_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > services.MaxHorizonDays {
			h.sendError(w, r, "horizon_days must be an integer between 1 and 365", http.StatusBadRequest)
			return
		}
		horizonDays = parsed
	}

	result, err := h.inferenceService.PredictRate(ctx, zoneID, horizonDays)
	if err != nil {
		var nf *repository.NotFoundError
		if errors.As(err, &nf) {
			h.sendError(w, r, nf.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error(ctx, "[API_PREDICT_ERROR] Rate prediction failed", logging.Fields{
			"zone_id": zoneID,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/zones/predictions")
		h.sendError(w, r, "prediction failed", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/zones/predictions", "POST", "200")
	h.sendJSON(w, result, http.StatusOK)
}

// GetFusions handles GET /api/fusions
func (h *ErosionHandler) GetFusions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, limit := h.pagination(r)
	filter := repository.FusionFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if zoneStr := r.URL.Query().Get("zone_id"); zoneStr != "" {
		zoneID, err := strconv.ParseInt(zoneStr, 10, 64)
		if err != nil {
			h.sendError(w, r, "invalid zone_id", http.StatusBadRequest)
			return
		}
		filter.ZoneID = &zoneID
	}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := models.FusionStatus(statusStr)
		filter.Status = &status
	}

	results, total, err := h.repo.ListFusionResults(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_FUSIONS_ERROR] Failed to list fusion results", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/fusions")
		h.sendError(w, r, "failed to retrieve fusion results", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/fusions", "GET", "200")
	h.sendJSON(w, h.paginated(results, total, page, limit), http.StatusOK)
}

// GetPredictions handles GET /api/predictions
func (h *ErosionHandler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, limit := h.pagination(r)
	filter := repository.PredictionFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if zoneStr := r.URL.Query().Get("zone_id"); zoneStr != "" {
		zoneID, err := strconv.ParseInt(zoneStr, 10, 64)
		if err != nil {
			h.sendError(w, r, "invalid zone_id", http.StatusBadRequest)
			return
		}
		filter.ZoneID = &zoneID
	}

	if levelStr := r.URL.Query().Get("risk_level"); levelStr != "" {
		level := models.RiskLevel(levelStr)
		filter.RiskLevel = &level
	}

	predictions, total, err := h.repo.ListPredictions(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_PREDICTIONS_ERROR] Failed to list predictions", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/predictions")
		h.sendError(w, r, "failed to retrieve predictions", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/predictions", "GET", "200")
	h.sendJSON(w, h.paginated(predictions, total, page, limit), http.StatusOK)
}

// GetAlerts handles GET /api/alerts
func (h *ErosionHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, limit := h.pagination(r)
	filter := repository.AlertFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if zoneStr := r.URL.Query().Get("zone_id"); zoneStr != "" {
		zoneID, err := strconv.ParseInt(zoneStr, 10, 64)
		if err != nil {
			h.sendError(w, r, "invalid zone_id", http.StatusBadRequest)
			return
		}
		filter.ZoneID = &zoneID
	}

	if sevStr := r.URL.Query().Get("severity"); sevStr != "" {
		severity := models.AlertSeverity(sevStr)
		filter.Severity = &severity
	}

	filter.ActiveOnly = r.URL.Query().Get("active") == "true"

	alerts, total, err := h.repo.ListAlerts(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_ALERTS_ERROR] Failed to list alerts", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/alerts")
		h.sendError(w, r, "failed to retrieve alerts", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/alerts", "GET", "200")
	h.sendJSON(w, h.paginated(alerts, total, page, limit), http.StatusOK)
}

// ResolveAlert handles POST /api/alerts/{id}/resolve
func (h *ErosionHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	alertID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.repo.ResolveAlert(ctx, alertID); err != nil {
		var nf *repository.NotFoundError
		if errors.As(err, &nf) {
			h.sendError(w, r, nf.Error(), http.StatusNotFound)
			return
		}
		h.sendError(w, r, "failed to resolve alert", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/alerts/resolve", "POST", "200")
	h.sendJSON(w, map[string]string{"status": "resolved"}, http.StatusOK)
}

// GetModels handles GET /api/models
func (h *ErosionHandler) GetModels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, limit := h.pagination(r)
	artifacts, err := h.repo.ListModelArtifacts(ctx, limit, (page-1)*limit)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_MODELS_ERROR] Failed to list model artifacts", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/models")
		h.sendError(w, r, "failed to retrieve models", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/models", "GET", "200")
	h.sendJSON(w, artifacts, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *ErosionHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.repo.HealthCheck(ctx); err != nil {
		h.sendJSON(w, map[string]string{
			"status":    "unhealthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}, http.StatusServiceUnavailable)
		return
	}

	h.sendJSON(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// pathID parses a numeric {id} path variable
func (h *ErosionHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		h.sendError(w, r, "invalid "+name+", expected positive integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// pagination parses page/limit query parameters with defaults
func (h *ErosionHandler) pagination(r *http.Request) (page, limit int) {
	page = 1
	limit = 100

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	return page, limit
}

func (h *ErosionHandler) paginated(data interface{}, total, page, limit int) PaginatedResponse {
	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
}

// sendJSON sends a JSON response
func (h *ErosionHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *ErosionHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all erosion API routes
func (h *ErosionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/events", h.CreateEvent).Methods("POST")
	router.HandleFunc("/api/analyses/events/{id}", h.AnalyzeEvent).Methods("POST")
	router.HandleFunc("/api/analyses/zones/{id}", h.AnalyzeZone).Methods("POST")
	router.HandleFunc("/api/models/train", h.TrainModels).Methods("POST")
	router.HandleFunc("/api/models", h.GetModels).Methods("GET")
	router.HandleFunc("/api/zones/{id}/predictions", h.PredictZoneRate).Methods("POST")
	router.HandleFunc("/api/fusions", h.GetFusions).Methods("GET")
	router.HandleFunc("/api/predictions", h.GetPredictions).Methods("GET")
	router.HandleFunc("/api/alerts", h.GetAlerts).Methods("GET")
	router.HandleFunc("/api/alerts/{id}/resolve", h.ResolveAlert).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
