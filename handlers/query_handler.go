package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"iot-anomaly-engine/analytics"
	"iot-anomaly-engine/models"

	"github.com/gorilla/mux"
)

const defaultQueryLimit = 50

// HandleAnomalies serves filtered anomaly queries. All provided filters
// apply conjunctively; results come back in chronological order.
func (h *EngineHandler) HandleAnomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultQueryLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	anomalies := h.engine.GetAnomalies(analytics.AnomalyFilter{
		EntityID: q.Get("entity_id"),
		Severity: models.Severity(q.Get("severity")),
		Type:     models.AnomalyType(q.Get("type")),
		Limit:    limit,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

// HandleSummary serves the registry aggregate and refreshes the cached
// copy best-effort.
func (h *EngineHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary := h.engine.GetSummary()

	if h.redisClient != nil {
		if err := h.redisClient.SaveSummary(summary); err != nil {
			log.Printf("WARNING: failed to cache summary: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleProfile serves the learned profile for one entity.
func (h *EngineHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entity_id"]

	profile := h.engine.GetProfile(entityID)
	if profile == nil {
		http.Error(w, "no profile for entity", http.StatusNotFound)
		return
	}

	view := profile.View()
	if h.redisClient != nil {
		if err := h.redisClient.SaveProfile(entityID, view); err != nil {
			log.Printf("WARNING: failed to cache profile for %s: %v", entityID, err)
		}
	}

	writeJSON(w, http.StatusOK, view)
}

// HandleCorrelations serves the learned correlation table.
func (h *EngineHandler) HandleCorrelations(w http.ResponseWriter, r *http.Request) {
	pairs := h.engine.GetCorrelations()
	writeJSON(w, http.StatusOK, map[string]any{
		"correlations": pairs,
		"count":        len(pairs),
	})
}

// HandleClear removes all anomalies, or only the given entity's, and
// reports the removed count.
func (h *EngineHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	removed := h.engine.ClearAnomalies(r.URL.Query().Get("entity_id"))
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// HandleLearn triggers a profile rebuild for one entity, or for every
// entity plus the correlation table when no entity_id is given.
func (h *EngineHandler) HandleLearn(w http.ResponseWriter, r *http.Request) {
	entityID := r.URL.Query().Get("entity_id")

	profiles := h.engine.LearnPatterns(entityID)
	pairs := 0
	if entityID == "" {
		pairs = h.engine.LearnCorrelations()
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"profiles": profiles,
		"pairs":    pairs,
	})
}

// HandleDetect triggers a detection pass for one entity, or a full pass
// including the cross-entity correlation check.
func (h *EngineHandler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	anomalies, err := h.engine.Detect(r.Context(), r.URL.Query().Get("entity_id"))
	detectionPassSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		http.Error(w, "detection pass cancelled: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

// HandleStats serves the engine counters.
func (h *EngineHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}
