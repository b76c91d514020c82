package analytics

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"iot-anomaly-engine/models"
)

// Shared z-score severity thresholds for every z-based detector.
const (
	zInfo     = 2.0
	zWarning  = 3.0
	zCritical = 4.0
)

// ZToSeverity maps an absolute z-score to a severity class. ok is false
// below the info threshold.
func ZToSeverity(z float64) (models.Severity, bool) {
	z = math.Abs(z)
	switch {
	case z >= zCritical:
		return models.SeverityCritical, true
	case z >= zWarning:
		return models.SeverityWarning, true
	case z >= zInfo:
		return models.SeverityInfo, true
	default:
		return "", false
	}
}

// ScoreFromZ maps a z-score to the 0-100 anomaly score.
func ScoreFromZ(z float64) float64 {
	return math.Min(100, math.Abs(z)*20)
}

// deviationPct is the percent deviation of value from expected, 0 when the
// expected value is zero.
func deviationPct(value, expected float64) float64 {
	if expected == 0 {
		return 0.0
	}
	return (value - expected) / expected * 100
}

// defaultTemplates are the built-in English descriptions. The template set
// is a locale concern and can be replaced wholesale; placeholders are
// substituted from the anomaly's structured fields so any language can be
// rendered without re-deriving numbers.
var defaultTemplates = map[models.AnomalyType]string{
	models.TypeSpike:       "{entity_id} reads {value}, {z_score} standard deviations from the expected {expected} ({deviation_pct}% off)",
	models.TypeDrift:       "{entity_id} mean has been {direction} from {baseline_mean} to {recent_mean} ({z_score} standard deviations)",
	models.TypeFlatline:    "{entity_id} reported {run_length} identical readings of {value}, sensor may be stuck",
	models.TypeSeasonal:    "{entity_id} reads {value} at {bucket}, outside its usual range around {expected} ({z_score} standard deviations)",
	models.TypeFrequency:   "{entity_id} reporting interval changed from {interval_before}s to {interval_after}s ({change_pct}% change)",
	models.TypeCorrelation: "{entity_a} and {entity_b} correlation moved from {learned} to {recent}",
}

// Describer renders anomaly descriptions from per-type templates.
type Describer struct {
	mu        sync.RWMutex
	templates map[models.AnomalyType]string
}

func NewDescriber() *Describer {
	templates := make(map[models.AnomalyType]string, len(defaultTemplates))
	for k, v := range defaultTemplates {
		templates[k] = v
	}
	return &Describer{templates: templates}
}

// SetTemplate replaces the template for one anomaly type.
func (d *Describer) SetTemplate(t models.AnomalyType, template string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.templates[t] = template
}

// Describe fills the type's template from the anomaly's structured fields.
func (d *Describer) Describe(a *models.Anomaly) string {
	d.mu.RLock()
	template, ok := d.templates[a.Type]
	d.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("%s anomaly on %s: value=%.4f expected=%.4f", a.Type, a.EntityID, a.Value, a.Expected)
	}

	bucket := a.Context.HourStr
	if bucket == "" {
		bucket = a.Context.WeekdayName
	}

	r := strings.NewReplacer(
		"{entity_id}", a.EntityID,
		"{value}", fmt.Sprintf("%.2f", a.Value),
		"{expected}", fmt.Sprintf("%.2f", a.Expected),
		"{deviation_pct}", fmt.Sprintf("%.1f", a.DeviationPct),
		"{z_score}", fmt.Sprintf("%.2f", a.Context.ZScore),
		"{direction}", a.Context.Direction,
		"{bucket}", bucket,
		"{run_length}", fmt.Sprintf("%d", a.Context.RunLength),
		"{interval_before}", fmt.Sprintf("%.0f", a.Context.IntervalBefore),
		"{interval_after}", fmt.Sprintf("%.0f", a.Context.IntervalAfter),
		"{change_pct}", fmt.Sprintf("%.0f", a.Context.ChangeRatio*100),
		"{entity_a}", a.Context.EntityA,
		"{entity_b}", a.Context.EntityB,
		"{learned}", fmt.Sprintf("%.2f", a.Context.LearnedCorrelation),
		"{recent}", fmt.Sprintf("%.2f", a.Context.RecentCorrelation),
	)
	return r.Replace(template)
}
