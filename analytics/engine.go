package analytics

import (
	"context"
	"log"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"iot-anomaly-engine/models"
)

// Config holds the engine's tunable limits. Zero-valued fields fall back to
// the defaults.
type Config struct {
	// MaxHistory bounds each entity's retained window; the default of 2016
	// points is about 12 weeks of hourly readings.
	MaxHistory int
	// MaxAnomalies caps the anomaly registry (FIFO eviction).
	MaxAnomalies int
	// Minimum retained points before any profile is learned, before an
	// entity joins correlation learning, and before seasonal checks run.
	MinPointsBasic       int
	MinPointsCorrelation int
	MinPointsSeasonal    int
	// Run length of bit-identical readings that flags a flatline.
	FlatlineRun int
	// Minimum overlapping samples for a correlation to be computable.
	MinOverlap int
	// Ingestion worker pool; 0 sizes from the CPU count.
	Workers   int
	QueueSize int
}

func DefaultConfig() Config {
	return Config{
		MaxHistory:           2016,
		MaxAnomalies:         500,
		MinPointsBasic:       24,
		MinPointsCorrelation: 48,
		MinPointsSeasonal:    168,
		FlatlineRun:          12,
		MinOverlap:           5,
		QueueSize:            10000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxHistory <= 0 {
		c.MaxHistory = d.MaxHistory
	}
	if c.MaxAnomalies <= 0 {
		c.MaxAnomalies = d.MaxAnomalies
	}
	if c.MinPointsBasic <= 0 {
		c.MinPointsBasic = d.MinPointsBasic
	}
	if c.MinPointsCorrelation <= 0 {
		c.MinPointsCorrelation = d.MinPointsCorrelation
	}
	if c.MinPointsSeasonal <= 0 {
		c.MinPointsSeasonal = d.MinPointsSeasonal
	}
	if c.FlatlineRun <= 0 {
		c.FlatlineRun = d.FlatlineRun
	}
	if c.MinOverlap <= 0 {
		c.MinOverlap = d.MinOverlap
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	return c
}

// AnomalyCallback fires for every recorded anomaly.
type AnomalyCallback func(models.Anomaly)

// Engine owns every piece of mutable engine state: per-entity histories,
// learned profiles, the correlation table, and the anomaly registry.
// Ingestion runs through a buffered channel and worker pool so many
// entities can write concurrently while a detection pass runs.
type Engine struct {
	cfg          Config
	store        *TimeSeriesStore
	profiler     *PatternProfiler
	correlations *CorrelationAnalyzer
	pipeline     *DetectorPipeline
	registry     *AnomalyRegistry
	describer    *Describer
	hub          *AnomalyHub
	onAnomaly    AnomalyCallback

	readings  chan models.DataPoint
	closeOnce sync.Once
	wg        sync.WaitGroup

	pointsIngested   int64
	pointsSkipped    int64
	anomalyCount     int64
	schedulerRunning int32
}

func NewEngine(cfg Config, onAnomaly AnomalyCallback) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:          cfg,
		store:        NewTimeSeriesStore(cfg.MaxHistory),
		profiler:     NewPatternProfiler(cfg.MinPointsBasic),
		correlations: NewCorrelationAnalyzer(cfg.MinPointsCorrelation, cfg.MinOverlap),
		pipeline:     NewDetectorPipeline(cfg),
		registry:     NewAnomalyRegistry(cfg.MaxAnomalies),
		describer:    NewDescriber(),
		hub:          NewAnomalyHub(),
		onAnomaly:    onAnomaly,
		readings:     make(chan models.DataPoint, cfg.QueueSize),
	}

	numWorkers := cfg.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU() * 2
		if envWorkers := os.Getenv("ENGINE_WORKERS"); envWorkers != "" {
			if w, err := strconv.Atoi(envWorkers); err == nil && w > 0 {
				numWorkers = w
			}
		}
		if numWorkers < 4 {
			numWorkers = 4
		}
		if numWorkers > 16 {
			numWorkers = 16
		}
	}

	log.Printf("Starting %d ingestion workers", numWorkers)
	for i := 0; i < numWorkers; i++ {
		e.wg.Add(1)
		go e.consumeReadings()
	}

	return e
}

// Close stops the ingestion workers. Queued readings are drained first.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.readings)
		e.wg.Wait()
	})
}

func (e *Engine) consumeReadings() {
	defer e.wg.Done()
	for p := range e.readings {
		e.ingestPoint(p)
	}
}

func (e *Engine) ingestPoint(p models.DataPoint) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	e.store.Append(p)
	atomic.AddInt64(&e.pointsIngested, 1)
}

// Ingest appends one reading synchronously. A zero timestamp defaults to
// the current UTC time. No detection is triggered by ingestion.
func (e *Engine) Ingest(entityID string, value float64, timestamp time.Time, attributes map[string]any) {
	e.ingestPoint(models.DataPoint{
		EntityID:   entityID,
		Value:      value,
		Timestamp:  timestamp,
		Attributes: attributes,
	})
}

// Submit queues one point for asynchronous ingestion. When the queue is
// full the point is dropped with a warning rather than blocking the caller.
func (e *Engine) Submit(p models.DataPoint) {
	select {
	case e.readings <- p:
	default:
		atomic.AddInt64(&e.pointsSkipped, 1)
		log.Printf("WARNING: reading queue is full, dropping point for entity %s", p.EntityID)
	}
}

// IngestBatch applies Ingest to each well-formed reading and returns the
// counts ingested and skipped. Readings missing entity_id or value are
// skipped with a logged reason; an unparsable timestamp falls back to
// "now" rather than rejecting the point. A malformed entry never aborts
// the batch.
func (e *Engine) IngestBatch(readings []models.Reading) (ingested, skipped int) {
	for i := range readings {
		r := &readings[i]
		if r.EntityID == "" || r.Value == nil {
			skipped++
			atomic.AddInt64(&e.pointsSkipped, 1)
			log.Printf("WARNING: skipping malformed batch entry %d (missing entity_id or value)", i)
			continue
		}
		e.ingestPoint(r.Point())
		ingested++
	}
	return ingested, skipped
}

// LearnPatterns rebuilds the profile for one entity, or for every entity
// with a history when entityID is empty. Returns the number of profiles
// produced; entities below the basic minimum are skipped.
func (e *Engine) LearnPatterns(entityID string) int {
	if entityID != "" {
		if e.profiler.Learn(entityID, e.store.Snapshot(entityID)) != nil {
			return 1
		}
		return 0
	}

	learned := 0
	for _, id := range e.store.Entities() {
		if e.profiler.Learn(id, e.store.Snapshot(id)) != nil {
			learned++
		}
	}
	return learned
}

// LearnCorrelations rebuilds the pairwise correlation table and returns
// the number of retained pairs.
func (e *Engine) LearnCorrelations() int {
	return e.correlations.Learn(e.store)
}

func (e *Engine) record(a models.Anomaly) models.Anomaly {
	a.Description = e.describer.Describe(&a)
	stored := e.registry.Record(a)
	atomic.AddInt64(&e.anomalyCount, 1)

	e.hub.Publish(stored)
	if e.onAnomaly != nil {
		e.onAnomaly(stored)
	}
	return stored
}

// detectEntity runs the per-entity pipeline over one history snapshot.
// A panic inside a detector is logged and confined to that entity so a
// full pass never aborts on one bad series.
func (e *Engine) detectEntity(entityID string) (anomalies []models.Anomaly) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("WARNING: detector failure for entity %s: %v", entityID, r)
			anomalies = nil
		}
	}()

	points := e.store.Snapshot(entityID)
	if len(points) < e.cfg.MinPointsBasic {
		return nil
	}

	profile := e.profiler.Profile(entityID)
	for _, a := range e.pipeline.Run(points, profile) {
		anomalies = append(anomalies, e.record(a))
	}
	return anomalies
}

// Detect runs the detector pipeline for one entity, or a full pass over
// every entity plus the cross-entity correlation check when entityID is
// empty. The full pass checks ctx between entities so shutdown never waits
// out an O(n^2) correlation sweep.
func (e *Engine) Detect(ctx context.Context, entityID string) ([]models.Anomaly, error) {
	if entityID != "" {
		return e.detectEntity(entityID), nil
	}

	var anomalies []models.Anomaly
	for _, id := range e.store.Entities() {
		select {
		case <-ctx.Done():
			return anomalies, ctx.Err()
		default:
		}
		anomalies = append(anomalies, e.detectEntity(id)...)
	}

	select {
	case <-ctx.Done():
		return anomalies, ctx.Err()
	default:
	}
	for _, a := range e.correlations.DetectBreaks(e.store) {
		anomalies = append(anomalies, e.record(a))
	}

	return anomalies, nil
}

// GetAnomalies returns the most recent matches for the filter in
// chronological order.
func (e *Engine) GetAnomalies(f AnomalyFilter) []models.Anomaly {
	return e.registry.Query(f)
}

// GetProfile returns the learned profile for an entity, or nil.
func (e *Engine) GetProfile(entityID string) *models.PatternProfile {
	return e.profiler.Profile(entityID)
}

// GetSummary aggregates the registry; entities with history but no logged
// anomaly report status "ok".
func (e *Engine) GetSummary() models.AnomalySummary {
	return e.registry.Summary(e.store.Entities())
}

// GetCorrelations returns the learned correlation table.
func (e *Engine) GetCorrelations() []models.CorrelationPair {
	return e.correlations.Pairs()
}

// ClearAnomalies removes all anomalies, or only one entity's, returning
// the removed count.
func (e *Engine) ClearAnomalies(entityID string) int {
	return e.registry.Clear(entityID)
}

// ClearEntity drops an entity's history and, with it, its learned profile.
func (e *Engine) ClearEntity(entityID string) {
	e.store.Clear(entityID)
	e.profiler.Forget(entityID)
}

// HistoryLen reports the retained point count for an entity.
func (e *Engine) HistoryLen(entityID string) int {
	return e.store.Len(entityID)
}

// Subscribe attaches a live anomaly subscriber; see AnomalyHub.Subscribe.
func (e *Engine) Subscribe(buffer int) (<-chan models.Anomaly, func()) {
	return e.hub.Subscribe(buffer)
}

// Describer exposes the template set for locale overrides.
func (e *Engine) Describer() *Describer {
	return e.describer
}

func (e *Engine) setSchedulerRunning(running bool) {
	v := int32(0)
	if running {
		v = 1
	}
	atomic.StoreInt32(&e.schedulerRunning, v)
}

// Stats snapshots the engine counters.
func (e *Engine) Stats() models.EngineStats {
	return models.EngineStats{
		PointsIngested:   atomic.LoadInt64(&e.pointsIngested),
		PointsSkipped:    atomic.LoadInt64(&e.pointsSkipped),
		TotalAnomalies:   atomic.LoadInt64(&e.anomalyCount),
		ActiveEntities:   len(e.store.Entities()),
		ProfiledEntities: e.profiler.Count(),
		CorrelatedPairs:  e.correlations.Count(),
		SchedulerRunning: atomic.LoadInt32(&e.schedulerRunning) == 1,
	}
}
