package models

import "time"

// Anomaly types emitted by the detector pipeline.
type AnomalyType string

const (
	TypeSpike       AnomalyType = "spike"
	TypeDrift       AnomalyType = "drift"
	TypeFlatline    AnomalyType = "flatline"
	TypeSeasonal    AnomalyType = "seasonal"
	TypeFrequency   AnomalyType = "frequency"
	TypeCorrelation AnomalyType = "correlation"
)

// Severity levels for detected anomalies.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for "worst seen" aggregation.
var severityRank = map[Severity]int{
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityCritical: 3,
}

// WorseSeverity reports whether a is strictly worse than b.
func WorseSeverity(a, b Severity) bool {
	return severityRank[a] > severityRank[b]
}

// AnomalyContext carries the structured fields needed to regenerate a
// description in any language without re-deriving numbers. Which fields are
// set depends on the anomaly type:
//
//	spike:       ZScore, HourStr (when the hourly baseline was used)
//	drift:       ZScore, Direction, BaselineMean, RecentMean
//	flatline:    RunLength
//	seasonal:    ZScore, HourStr or WeekdayName
//	frequency:   ChangeRatio, IntervalBefore, IntervalAfter
//	correlation: EntityA, EntityB, LearnedCorrelation, RecentCorrelation
type AnomalyContext struct {
	ZScore             float64 `json:"z_score,omitempty"`
	Direction          string  `json:"direction,omitempty"`
	HourStr            string  `json:"hour_str,omitempty"`
	WeekdayName        string  `json:"weekday_name,omitempty"`
	RunLength          int     `json:"run_length,omitempty"`
	ChangeRatio        float64 `json:"change_ratio,omitempty"`
	IntervalBefore     float64 `json:"interval_before_s,omitempty"`
	IntervalAfter      float64 `json:"interval_after_s,omitempty"`
	EntityA            string  `json:"entity_a,omitempty"`
	EntityB            string  `json:"entity_b,omitempty"`
	LearnedCorrelation float64 `json:"learned_correlation,omitempty"`
	RecentCorrelation  float64 `json:"recent_correlation,omitempty"`
	BaselineMean       float64 `json:"baseline_mean,omitempty"`
	RecentMean         float64 `json:"recent_mean,omitempty"`
}

// Anomaly is a scored, classified detection result. Immutable once recorded;
// references its source entity by ID only (correlation anomalies use the
// synthetic composite id "A <-> B").
type Anomaly struct {
	ID           int64          `json:"anomaly_id"`
	EntityID     string         `json:"entity_id"`
	Type         AnomalyType    `json:"anomaly_type"`
	Severity     Severity       `json:"severity"`
	Score        float64        `json:"score"`
	DetectedAt   time.Time      `json:"detected_at"`
	Value        float64        `json:"value"`
	Expected     float64        `json:"expected_value"`
	DeviationPct float64        `json:"deviation_pct"`
	Description  string         `json:"description"`
	Context      AnomalyContext `json:"context"`
}

// AnomalySummary aggregates the current registry contents.
type AnomalySummary struct {
	Total        int                 `json:"total_anomalies"`
	BySeverity   map[Severity]int    `json:"by_severity"`
	ByType       map[AnomalyType]int `json:"by_type"`
	EntityStatus map[string]string   `json:"entity_status"`
	TopAnomalies []Anomaly           `json:"top_anomalies"`
}

// EngineStats is a snapshot of engine-level counters.
type EngineStats struct {
	PointsIngested   int64 `json:"points_ingested"`
	PointsSkipped    int64 `json:"points_skipped"`
	TotalAnomalies   int64 `json:"total_anomalies"`
	ActiveEntities   int   `json:"active_entities"`
	ProfiledEntities int   `json:"profiled_entities"`
	CorrelatedPairs  int   `json:"correlated_pairs"`
	SchedulerRunning bool  `json:"scheduler_running"`
}
