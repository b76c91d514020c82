package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"iot-anomaly-engine/analytics"
	"iot-anomaly-engine/cache"
	"iot-anomaly-engine/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	anomaliesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Total number of anomalies detected",
		},
		[]string{"type", "severity"},
	)

	pointsIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "points_ingested_total",
			Help: "Total number of readings ingested",
		},
	)

	pointsMalformedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "points_malformed_total",
			Help: "Total number of malformed readings skipped",
		},
	)

	detectionPassSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detection_pass_seconds",
			Help:    "Duration of detection passes",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// EngineHandler wires the anomaly engine to the HTTP boundary. Detected
// anomalies feed the prometheus counter and, when a cache is configured,
// the redis notification channel.
type EngineHandler struct {
	redisClient    *cache.RedisClient
	engine         *analytics.Engine
	anomalyChannel string
}

func NewEngineHandler(cfg analytics.Config, redisClient *cache.RedisClient, anomalyChannel string) *EngineHandler {
	h := &EngineHandler{
		redisClient:    redisClient,
		anomalyChannel: anomalyChannel,
	}

	onAnomaly := func(a models.Anomaly) {
		anomaliesDetectedTotal.WithLabelValues(string(a.Type), string(a.Severity)).Inc()

		if h.redisClient != nil && h.anomalyChannel != "" {
			go func(a models.Anomaly) {
				if err := h.redisClient.PublishAnomaly(h.anomalyChannel, a); err != nil {
					log.Printf("WARNING: failed to publish anomaly %d: %v", a.ID, err)
				}
			}(a)
		}
	}

	h.engine = analytics.NewEngine(cfg, onAnomaly)
	return h
}

// Engine exposes the underlying engine for the scheduler and shutdown.
func (h *EngineHandler) Engine() *analytics.Engine {
	return h.engine
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func observe(r *http.Request, start time.Time, status string) {
	requestDurationSeconds.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
}

// HandleReading accepts a single reading. Unlike the batch endpoint, a
// malformed single reading is rejected outright.
func (h *EngineHandler) HandleReading(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var reading models.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		observe(r, start, "400")
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	if err := reading.Validate(); err != nil {
		pointsMalformedTotal.Inc()
		observe(r, start, "400")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.engine.Submit(reading.Point())
	pointsIngestedTotal.Inc()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "accepted",
		"entity_id": reading.EntityID,
	})
	observe(r, start, "202")
}

// HandleBatch accepts a list of readings, skipping malformed entries
// instead of rejecting the whole batch.
func (h *EngineHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var readings []models.Reading
	if err := json.NewDecoder(r.Body).Decode(&readings); err != nil {
		observe(r, start, "400")
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	ingested, skipped := h.engine.IngestBatch(readings)
	pointsIngestedTotal.Add(float64(ingested))
	pointsMalformedTotal.Add(float64(skipped))

	writeJSON(w, http.StatusOK, map[string]int{
		"ingested": ingested,
		"skipped":  skipped,
	})
	observe(r, start, "200")
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
