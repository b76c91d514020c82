package analytics

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"iot-anomaly-engine/models"
)

const (
	// Pairs below this absolute coefficient are not considered learned
	// relationships worth watching for breaks.
	strongCorrelation = 0.7
	// Recent-vs-learned coefficient gap that flags a broken correlation,
	// and the gap above which the break is critical.
	breakDelta    = 0.5
	breakCritical = 0.8
	// Recent window used when re-checking a learned pair.
	breakWindow = 24
)

// CorrelationAnalyzer learns Pearson correlations for every unordered pair
// of entities with enough history, and re-checks strong pairs for breaks.
// Learning is O(n^2) in entity count per pass, acceptable for periodic
// batch runs over low hundreds of entities.
type CorrelationAnalyzer struct {
	mu         sync.RWMutex
	pairs      map[string]models.CorrelationPair
	minPoints  int
	minOverlap int
}

func NewCorrelationAnalyzer(minPoints, minOverlap int) *CorrelationAnalyzer {
	return &CorrelationAnalyzer{
		pairs:      make(map[string]models.CorrelationPair),
		minPoints:  minPoints,
		minOverlap: minOverlap,
	}
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// compositeID is the synthetic entity id carried by correlation anomalies.
func compositeID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%s <-> %s", a, b)
}

// correlationOf computes the Pearson coefficient of two histories over
// their index-aligned overlap, optionally restricted to the most recent
// window points of each series. Returns nil when fewer than minOverlap
// samples overlap, which is distinct from a genuine zero correlation.
func (ca *CorrelationAnalyzer) correlationOf(a, b []models.DataPoint, window int) (*float64, int) {
	if window > 0 {
		a = tail(a, window)
		b = tail(b, window)
	}

	overlap := len(a)
	if len(b) < overlap {
		overlap = len(b)
	}
	if overlap < ca.minOverlap {
		return nil, overlap
	}

	r := pearson(pointValues(tail(a, overlap)), pointValues(tail(b, overlap)))
	return &r, overlap
}

// Learn recomputes the correlation table for every unordered pair of
// entities that each hold at least minPoints retained points. The table is
// replaced wholesale.
func (ca *CorrelationAnalyzer) Learn(store *TimeSeriesStore) int {
	ids := store.Entities()
	sort.Strings(ids)

	eligible := make([]string, 0, len(ids))
	histories := make(map[string][]models.DataPoint, len(ids))
	for _, id := range ids {
		points := store.Snapshot(id)
		if len(points) < ca.minPoints {
			continue
		}
		eligible = append(eligible, id)
		histories[id] = points
	}

	fresh := make(map[string]models.CorrelationPair)
	for i := 0; i < len(eligible); i++ {
		for j := i + 1; j < len(eligible); j++ {
			a, b := eligible[i], eligible[j]
			r, n := ca.correlationOf(histories[a], histories[b], 0)
			if r == nil {
				continue
			}
			fresh[pairKey(a, b)] = models.CorrelationPair{
				EntityA:     a,
				EntityB:     b,
				Correlation: *r,
				SampleCount: n,
			}
		}
	}

	ca.mu.Lock()
	ca.pairs = fresh
	ca.mu.Unlock()

	return len(fresh)
}

// Pair returns the learned correlation for two entities, if any.
func (ca *CorrelationAnalyzer) Pair(a, b string) (models.CorrelationPair, bool) {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	p, ok := ca.pairs[pairKey(a, b)]
	return p, ok
}

// Pairs returns the learned correlation table sorted by pair key.
func (ca *CorrelationAnalyzer) Pairs() []models.CorrelationPair {
	ca.mu.RLock()
	defer ca.mu.RUnlock()

	keys := make([]string, 0, len(ca.pairs))
	for k := range ca.pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.CorrelationPair, 0, len(keys))
	for _, k := range keys {
		out = append(out, ca.pairs[k])
	}
	return out
}

// Count reports the number of learned pairs.
func (ca *CorrelationAnalyzer) Count() int {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	return len(ca.pairs)
}

// DetectBreaks re-checks every strongly correlated pair over the recent
// window and emits an anomaly when the coefficient has moved away from the
// learned one by more than breakDelta. Runs once per detection pass, not
// per entity.
func (ca *CorrelationAnalyzer) DetectBreaks(store *TimeSeriesStore) []models.Anomaly {
	var anomalies []models.Anomaly

	for _, pair := range ca.Pairs() {
		if math.Abs(pair.Correlation) < strongCorrelation {
			continue
		}

		recent, _ := ca.correlationOf(store.Snapshot(pair.EntityA), store.Snapshot(pair.EntityB), breakWindow)
		if recent == nil {
			continue
		}

		diff := math.Abs(*recent - pair.Correlation)
		if diff <= breakDelta {
			continue
		}

		severity := models.SeverityWarning
		if diff >= breakCritical {
			severity = models.SeverityCritical
		}

		anomalies = append(anomalies, models.Anomaly{
			EntityID:     compositeID(pair.EntityA, pair.EntityB),
			Type:         models.TypeCorrelation,
			Severity:     severity,
			Score:        math.Min(100, diff*100),
			DetectedAt:   time.Now().UTC(),
			Value:        *recent,
			Expected:     pair.Correlation,
			DeviationPct: diff * 100,
			Context: models.AnomalyContext{
				EntityA:            pair.EntityA,
				EntityB:            pair.EntityB,
				LearnedCorrelation: pair.Correlation,
				RecentCorrelation:  *recent,
			},
		})
	}

	return anomalies
}
