package analytics

import (
	"fmt"
	"math"
	"time"

	"iot-anomaly-engine/models"
)

const (
	// Window of freshest points the spike detector examines.
	spikeWindow = 3
	// Drift compares the most recent driftWindow points against everything
	// older, so at least 2*driftWindow points are required.
	driftWindow    = 24
	driftMinPoints = 48
	// Frequency change thresholds on the relative mean-interval change.
	frequencyMinPoints  = 48
	frequencyChangeFlag = 0.5
	frequencyChangeCrit = 1.0
	// Flatline is always a warning with a fixed score, independent of the
	// stuck value itself.
	flatlineScore = 60.0
)

// DetectorPipeline runs the fixed ordered set of per-entity detectors:
// spike, drift, flatline, seasonal, frequency. Each detector silently
// produces nothing when its minimum-sample precondition is unmet, a
// deliberate guard against false positives on short histories. The
// cross-entity correlation detector lives on CorrelationAnalyzer.
type DetectorPipeline struct {
	flatlineRun int
	seasonalMin int
}

func NewDetectorPipeline(cfg Config) *DetectorPipeline {
	return &DetectorPipeline{
		flatlineRun: cfg.FlatlineRun,
		seasonalMin: cfg.MinPointsSeasonal,
	}
}

// Run evaluates one entity's history snapshot against its profile and
// returns every anomaly candidate found in this pass.
func (dp *DetectorPipeline) Run(points []models.DataPoint, profile *models.PatternProfile) []models.Anomaly {
	var anomalies []models.Anomaly
	anomalies = append(anomalies, dp.detectSpike(points, profile)...)
	anomalies = append(anomalies, dp.detectDrift(points)...)
	anomalies = append(anomalies, dp.detectFlatline(points)...)
	anomalies = append(anomalies, dp.detectSeasonal(points, profile)...)
	anomalies = append(anomalies, dp.detectFrequency(points)...)
	return anomalies
}

func hourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// detectSpike scores the freshest points against both the global baseline
// and the matching hour-of-day bucket, taking the larger of the two
// z-scores so a value normal globally but abnormal for 3 AM still fires.
func (dp *DetectorPipeline) detectSpike(points []models.DataPoint, profile *models.PatternProfile) []models.Anomaly {
	if profile == nil || profile.GlobalStd <= 0 {
		return nil
	}

	var anomalies []models.Anomaly
	for _, p := range tail(points, spikeWindow) {
		z := (p.Value - profile.GlobalMean) / profile.GlobalStd
		expected := profile.GlobalMean
		hourUsed := false

		hour := p.Timestamp.Hour()
		if hm, ok := profile.HourMean(hour); ok {
			expected = hm
			hourUsed = true
		}
		if hm, hs, ok := profile.HourBaseline(hour); ok {
			if zh := (p.Value - hm) / hs; math.Abs(zh) > math.Abs(z) {
				z = zh
			}
		}

		severity, ok := ZToSeverity(z)
		if !ok {
			continue
		}

		ctx := models.AnomalyContext{ZScore: z}
		if hourUsed {
			ctx.HourStr = hourLabel(hour)
		}

		anomalies = append(anomalies, models.Anomaly{
			EntityID:     p.EntityID,
			Type:         models.TypeSpike,
			Severity:     severity,
			Score:        ScoreFromZ(z),
			DetectedAt:   time.Now().UTC(),
			Value:        p.Value,
			Expected:     expected,
			DeviationPct: deviationPct(p.Value, expected),
			Context:      ctx,
		})
	}
	return anomalies
}

// detectDrift flags a sustained shift of the recent segment mean away from
// the older baseline, measured in older-segment standard deviations.
func (dp *DetectorPipeline) detectDrift(points []models.DataPoint) []models.Anomaly {
	if len(points) < driftMinPoints {
		return nil
	}

	older := pointValues(points[:len(points)-driftWindow])
	recent := pointValues(points[len(points)-driftWindow:])

	olderMean := mean(older)
	olderStd := sampleStd(older, olderMean)
	if olderStd <= 0 {
		return nil
	}

	recentMean := mean(recent)
	z := (recentMean - olderMean) / olderStd

	severity, ok := ZToSeverity(z)
	if !ok {
		return nil
	}

	direction := "rising"
	if z < 0 {
		direction = "falling"
	}

	last := points[len(points)-1]
	return []models.Anomaly{{
		EntityID:     last.EntityID,
		Type:         models.TypeDrift,
		Severity:     severity,
		Score:        ScoreFromZ(z),
		DetectedAt:   time.Now().UTC(),
		Value:        recentMean,
		Expected:     olderMean,
		DeviationPct: deviationPct(recentMean, olderMean),
		Context: models.AnomalyContext{
			ZScore:       z,
			Direction:    direction,
			BaselineMean: olderMean,
			RecentMean:   recentMean,
		},
	}}
}

// detectFlatline fires when the freshest run of readings is bit-identical.
// A stuck sensor is suspicious regardless of the value it is stuck at, so
// severity and score are fixed.
func (dp *DetectorPipeline) detectFlatline(points []models.DataPoint) []models.Anomaly {
	if len(points) < dp.flatlineRun {
		return nil
	}

	run := tail(points, dp.flatlineRun)
	flat := run[0].Value
	for _, p := range run[1:] {
		if p.Value != flat {
			return nil
		}
	}

	last := points[len(points)-1]
	return []models.Anomaly{{
		EntityID:   last.EntityID,
		Type:       models.TypeFlatline,
		Severity:   models.SeverityWarning,
		Score:      flatlineScore,
		DetectedAt: time.Now().UTC(),
		Value:      flat,
		Expected:   flat,
		Context: models.AnomalyContext{
			RunLength: dp.flatlineRun,
		},
	}}
}

// detectSeasonal checks only the single latest point: once against its
// hour-of-day bucket at the warning threshold, and once against its
// weekday bucket at the critical threshold only. Both checks can fire for
// the same point.
func (dp *DetectorPipeline) detectSeasonal(points []models.DataPoint, profile *models.PatternProfile) []models.Anomaly {
	if profile == nil || len(points) < dp.seasonalMin {
		return nil
	}

	last := points[len(points)-1]
	var anomalies []models.Anomaly

	hour := last.Timestamp.Hour()
	if hm, hs, ok := profile.HourBaseline(hour); ok {
		z := (last.Value - hm) / hs
		if math.Abs(z) >= zWarning {
			severity, _ := ZToSeverity(z)
			anomalies = append(anomalies, models.Anomaly{
				EntityID:     last.EntityID,
				Type:         models.TypeSeasonal,
				Severity:     severity,
				Score:        ScoreFromZ(z),
				DetectedAt:   time.Now().UTC(),
				Value:        last.Value,
				Expected:     hm,
				DeviationPct: deviationPct(last.Value, hm),
				Context: models.AnomalyContext{
					ZScore:  z,
					HourStr: hourLabel(hour),
				},
			})
		}
	}

	if dm, ds, ok := profile.WeekdayBaseline(weekdayIndex(last.Timestamp)); ok {
		z := (last.Value - dm) / ds
		if math.Abs(z) >= zCritical {
			anomalies = append(anomalies, models.Anomaly{
				EntityID:     last.EntityID,
				Type:         models.TypeSeasonal,
				Severity:     models.SeverityCritical,
				Score:        ScoreFromZ(z),
				DetectedAt:   time.Now().UTC(),
				Value:        last.Value,
				Expected:     dm,
				DeviationPct: deviationPct(last.Value, dm),
				Context: models.AnomalyContext{
					ZScore:      z,
					WeekdayName: last.Timestamp.Weekday().String(),
				},
			})
		}
	}

	return anomalies
}

func meanIntervalSeconds(points []models.DataPoint) float64 {
	if len(points) < 2 {
		return 0.0
	}
	total := points[len(points)-1].Timestamp.Sub(points[0].Timestamp).Seconds()
	return total / float64(len(points)-1)
}

// detectFrequency splits the history at the midpoint and flags a change in
// the mean inter-sample interval above 50%. An entity that suddenly
// reports twice as often, or half as often, is misbehaving even when its
// values look normal.
func (dp *DetectorPipeline) detectFrequency(points []models.DataPoint) []models.Anomaly {
	if len(points) < frequencyMinPoints {
		return nil
	}

	mid := len(points) / 2
	before := meanIntervalSeconds(points[:mid])
	after := meanIntervalSeconds(points[mid:])
	if before <= 0 {
		return nil
	}

	change := math.Abs(after-before) / before
	if change <= frequencyChangeFlag {
		return nil
	}

	severity := models.SeverityWarning
	if change >= frequencyChangeCrit {
		severity = models.SeverityCritical
	}

	last := points[len(points)-1]
	return []models.Anomaly{{
		EntityID:     last.EntityID,
		Type:         models.TypeFrequency,
		Severity:     severity,
		Score:        math.Min(100, change*4*20),
		DetectedAt:   time.Now().UTC(),
		Value:        after,
		Expected:     before,
		DeviationPct: deviationPct(after, before),
		Context: models.AnomalyContext{
			ChangeRatio:    change,
			IntervalBefore: before,
			IntervalAfter:  after,
		},
	}}
}
