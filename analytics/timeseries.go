package analytics

import (
	"sync"

	"iot-anomaly-engine/models"
)

// seriesBuffer is a fixed-capacity ring buffer of data points for one
// entity. Appends overwrite the oldest point once the capacity is reached.
type seriesBuffer struct {
	mu       sync.Mutex
	capacity int
	points   []models.DataPoint
	index    int
	count    int
}

func newSeriesBuffer(capacity int) *seriesBuffer {
	return &seriesBuffer{
		capacity: capacity,
		points:   make([]models.DataPoint, capacity),
	}
}

func (sb *seriesBuffer) Append(p models.DataPoint) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.points[sb.index] = p
	sb.index = (sb.index + 1) % sb.capacity
	if sb.count < sb.capacity {
		sb.count++
	}
}

func (sb *seriesBuffer) Len() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.count
}

// Snapshot returns a chronological copy of the buffered points.
func (sb *seriesBuffer) Snapshot() []models.DataPoint {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	out := make([]models.DataPoint, 0, sb.count)
	if sb.count < sb.capacity {
		out = append(out, sb.points[:sb.count]...)
		return out
	}
	out = append(out, sb.points[sb.index:]...)
	out = append(out, sb.points[:sb.index]...)
	return out
}

// TimeSeriesStore owns the bounded per-entity history buffers. Appends on
// different entities never contend; the entity map itself is guarded by a
// read-write lock.
type TimeSeriesStore struct {
	mu         sync.RWMutex
	maxHistory int
	series     map[string]*seriesBuffer
}

func NewTimeSeriesStore(maxHistory int) *TimeSeriesStore {
	return &TimeSeriesStore{
		maxHistory: maxHistory,
		series:     make(map[string]*seriesBuffer),
	}
}

func (ts *TimeSeriesStore) buffer(entityID string) *seriesBuffer {
	ts.mu.RLock()
	sb, ok := ts.series[entityID]
	ts.mu.RUnlock()
	if ok {
		return sb
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if sb, ok = ts.series[entityID]; !ok {
		sb = newSeriesBuffer(ts.maxHistory)
		ts.series[entityID] = sb
	}
	return sb
}

// Append stores one point in its entity's buffer, evicting the oldest point
// when the buffer is full.
func (ts *TimeSeriesStore) Append(p models.DataPoint) {
	ts.buffer(p.EntityID).Append(p)
}

// Len reports the number of retained points for an entity.
func (ts *TimeSeriesStore) Len(entityID string) int {
	ts.mu.RLock()
	sb, ok := ts.series[entityID]
	ts.mu.RUnlock()
	if !ok {
		return 0
	}
	return sb.Len()
}

// Snapshot returns a chronological copy of an entity's history, or nil for
// an unknown entity.
func (ts *TimeSeriesStore) Snapshot(entityID string) []models.DataPoint {
	ts.mu.RLock()
	sb, ok := ts.series[entityID]
	ts.mu.RUnlock()
	if !ok {
		return nil
	}
	return sb.Snapshot()
}

// Entities lists all entity IDs with at least one retained point.
func (ts *TimeSeriesStore) Entities() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	ids := make([]string, 0, len(ts.series))
	for id := range ts.series {
		ids = append(ids, id)
	}
	return ids
}

// Clear drops an entity's history entirely.
func (ts *TimeSeriesStore) Clear(entityID string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.series, entityID)
}
