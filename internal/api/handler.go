package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"gaze_service/internal/core"
	"gaze_service/internal/domain/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestIDHeader = "X-Request-ID"

type Predictor interface {
	Predict(ctx context.Context, key model.SessionKey) core.Result
}

type SampleWriter interface {
	InsertSamples(ctx context.Context, samples []model.GazeSample) error
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	service Predictor
	samples SampleWriter
	db      Pinger
	metrics *Metrics
}

func NewHandler(service Predictor, samples SampleWriter, db Pinger, metrics *Metrics) *Handler {
	return &Handler{
		service: service,
		samples: samples,
		db:      db,
		metrics: metrics,
	}
}

type PredictRequest struct {
	UserID   *int64 `json:"user_id" binding:"required"`
	SurveyID *int64 `json:"survey_id" binding:"required"`
}

// RegisterRoutes mounts the API and the Prometheus endpoint for gatherer.
func (h *Handler) RegisterRoutes(router *gin.Engine, gatherer prometheus.Gatherer) {
	router.Use(RequestID())

	router.GET("/health", h.Health)
	router.POST("/predict", h.Predict)
	router.POST("/gaze-data", h.SaveGazeData)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// RequestID tags every request with an id, reusing the caller's if present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Predict classifies one session. Domain failures are reported in the body
// with status 200; only malformed requests get a 4xx.
func (h *Handler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": core.StatusError, "message": "Invalid request body: " + err.Error()})
		return
	}
	key := model.SessionKey{UserID: *req.UserID, SurveyID: *req.SurveyID}

	start := time.Now()
	res := h.service.Predict(c.Request.Context(), key)
	elapsed := time.Since(start)
	if h.metrics != nil {
		h.metrics.observePrediction(res, elapsed)
	}

	slog.Info("prediction request",
		"request_id", c.GetString("request_id"),
		"user_id", key.UserID,
		"survey_id", key.SurveyID,
		"status", res.Status,
		"stage", res.Stage,
		"duration_ms", elapsed.Milliseconds(),
	)
	c.JSON(http.StatusOK, res)
}

// SaveGazeData stores one raw gaze sample.
func (h *Handler) SaveGazeData(c *gin.Context) {
	var sample model.GazeSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.samples.InsertSamples(c.Request.Context(), []model.GazeSample{sample}); err != nil {
		slog.Error("failed to save gaze data", "request_id", c.GetString("request_id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save gaze data"})
		return
	}
	if h.metrics != nil {
		h.metrics.samples.Inc()
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Gaze data saved successfully"})
}

func (h *Handler) Health(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
