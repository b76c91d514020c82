package analytics

import (
	"sort"
	"sync"

	"iot-anomaly-engine/models"
)

// AnomalyFilter narrows a registry query. Zero-valued fields are ignored;
// set fields apply conjunctively.
type AnomalyFilter struct {
	EntityID string
	Severity models.Severity
	Type     models.AnomalyType
	Limit    int
}

// AnomalyRegistry is a bounded append-only log of detected anomalies with
// FIFO eviction and a monotonic engine-scoped ID counter.
type AnomalyRegistry struct {
	mu       sync.RWMutex
	capacity int
	records  []models.Anomaly
	nextID   int64
}

func NewAnomalyRegistry(capacity int) *AnomalyRegistry {
	return &AnomalyRegistry{
		capacity: capacity,
		records:  make([]models.Anomaly, 0, capacity),
		nextID:   1,
	}
}

// Record assigns the anomaly its ID, appends it, and evicts the oldest
// record when over capacity. Returns the stored copy.
func (ar *AnomalyRegistry) Record(a models.Anomaly) models.Anomaly {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	a.ID = ar.nextID
	ar.nextID++

	ar.records = append(ar.records, a)
	if len(ar.records) > ar.capacity {
		ar.records = ar.records[len(ar.records)-ar.capacity:]
	}
	return a
}

func (f AnomalyFilter) matches(a models.Anomaly) bool {
	if f.EntityID != "" && a.EntityID != f.EntityID {
		return false
	}
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	return true
}

// Query returns the most recent limit matches in chronological order.
func (ar *AnomalyRegistry) Query(f AnomalyFilter) []models.Anomaly {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	var matched []models.Anomaly
	for i := len(ar.records) - 1; i >= 0; i-- {
		if !f.matches(ar.records[i]) {
			continue
		}
		matched = append(matched, ar.records[i])
		if f.Limit > 0 && len(matched) >= f.Limit {
			break
		}
	}

	// Collected newest-first; flip back to chronological.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched
}

// Len reports the number of retained records.
func (ar *AnomalyRegistry) Len() int {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	return len(ar.records)
}

// Clear removes all records, or only those for one entity, and returns the
// removed count.
func (ar *AnomalyRegistry) Clear(entityID string) int {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if entityID == "" {
		removed := len(ar.records)
		ar.records = ar.records[:0]
		return removed
	}

	kept := ar.records[:0]
	removed := 0
	for _, a := range ar.records {
		if a.EntityID == entityID {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	ar.records = kept
	return removed
}

// Summary aggregates the retained records. knownEntities seeds the
// per-entity status map so entities with no logged anomaly report "ok".
func (ar *AnomalyRegistry) Summary(knownEntities []string) models.AnomalySummary {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	summary := models.AnomalySummary{
		Total:        len(ar.records),
		BySeverity:   make(map[models.Severity]int),
		ByType:       make(map[models.AnomalyType]int),
		EntityStatus: make(map[string]string),
	}

	for _, id := range knownEntities {
		summary.EntityStatus[id] = "ok"
	}

	for _, a := range ar.records {
		summary.BySeverity[a.Severity]++
		summary.ByType[a.Type]++

		current, ok := summary.EntityStatus[a.EntityID]
		if !ok || current == "ok" || models.WorseSeverity(a.Severity, models.Severity(current)) {
			summary.EntityStatus[a.EntityID] = string(a.Severity)
		}
	}

	top := make([]models.Anomaly, len(ar.records))
	copy(top, ar.records)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Score > top[j].Score })
	if len(top) > 10 {
		top = top[:10]
	}
	summary.TopAnomalies = top

	return summary
}
