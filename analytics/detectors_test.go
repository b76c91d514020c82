package analytics

import (
	"testing"
	"time"

	"iot-anomaly-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline() *DetectorPipeline {
	return NewDetectorPipeline(DefaultConfig())
}

// noise is a small deterministic zero-mean sequence used to give series a
// realistic spread without randomness in tests.
var noise = []float64{-1, 0, 1, 0.5, -0.5}

func noisyAt(i int) float64 {
	return noise[i%len(noise)]
}

func filterType(anomalies []models.Anomaly, t models.AnomalyType) []models.Anomaly {
	var out []models.Anomaly
	for _, a := range anomalies {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

func TestSpikeDetector(t *testing.T) {
	points := hourlySeries("e1", 100, func(i int) float64 { return 20 + noisyAt(i) })
	// Replace the last value with an extreme outlier.
	points[99].Value = 40

	profile := buildProfile("e1", points[:99])
	spikes := filterType(newTestPipeline().detectSpike(points, profile), models.TypeSpike)

	require.Len(t, spikes, 1, "only the outlier among the last 3 points fires")
	spike := spikes[0]
	assert.Equal(t, models.SeverityCritical, spike.Severity)
	assert.Equal(t, 100.0, spike.Score)
	assert.Equal(t, 40.0, spike.Value)
	assert.Greater(t, spike.Context.ZScore, 4.0)
	assert.InDelta(t, (40.0-spike.Expected)/spike.Expected*100, spike.DeviationPct, 1e-9)
}

func TestSpikeDetectorNeedsSpread(t *testing.T) {
	points := hourlySeries("e1", 50, func(int) float64 { return 20 })
	profile := buildProfile("e1", points)
	require.Equal(t, 0.0, profile.GlobalStd)

	assert.Empty(t, newTestPipeline().detectSpike(points, profile))
	assert.Empty(t, newTestPipeline().detectSpike(points, nil))
}

func TestSpikeDetectorHourlyContext(t *testing.T) {
	// Values depend on the hour of day with small in-bucket spread: 40 is
	// unremarkable globally (range spans 0..46) but wild for hour 0.
	points := hourlySeries("e1", 24*10, func(i int) float64 {
		return float64(2*(i%24)) + noisyAt(i/24)
	})
	profile := buildProfile("e1", points)

	extra := models.DataPoint{
		EntityID:  "e1",
		Value:     40,
		Timestamp: points[len(points)-1].Timestamp.Add(time.Hour), // hour 0
	}
	spikes := newTestPipeline().detectSpike(append(points, extra), profile)

	require.NotEmpty(t, spikes)
	spike := spikes[len(spikes)-1]
	assert.Equal(t, "00:00", spike.Context.HourStr)
	assert.InDelta(t, profile.HourlyMeans[0], spike.Expected, 1e-9,
		"expected value comes from the hourly bucket when available")
}

func TestDriftDetector(t *testing.T) {
	// 48 stable points, then the last 24 shifted up by 5.
	points := hourlySeries("e1", 72, func(i int) float64 {
		v := 20 + noisyAt(i)
		if i >= 48 {
			v += 5
		}
		return v
	})

	drifts := newTestPipeline().detectDrift(points)
	require.Len(t, drifts, 1)

	d := drifts[0]
	assert.Equal(t, models.TypeDrift, d.Type)
	assert.Equal(t, "rising", d.Context.Direction)
	assert.Greater(t, d.Context.ZScore, 4.0)
	assert.InDelta(t, 20.0, d.Expected, 0.5)
	assert.InDelta(t, 25.0, d.Value, 0.5)
}

func TestDriftDetectorFalling(t *testing.T) {
	points := hourlySeries("e1", 72, func(i int) float64 {
		v := 20 + noisyAt(i)
		if i >= 48 {
			v -= 5
		}
		return v
	})

	drifts := newTestPipeline().detectDrift(points)
	require.Len(t, drifts, 1)
	assert.Equal(t, "falling", drifts[0].Context.Direction)
}

func TestDriftDetectorPreconditions(t *testing.T) {
	dp := newTestPipeline()

	// Too short.
	assert.Empty(t, dp.detectDrift(hourlySeries("e1", 47, func(i int) float64 { return float64(i) })))

	// Older segment with zero spread cannot be scored against.
	flatThenShift := hourlySeries("e1", 72, func(i int) float64 {
		if i >= 48 {
			return 25
		}
		return 20
	})
	assert.Empty(t, dp.detectDrift(flatThenShift))

	// Stable series does not drift.
	assert.Empty(t, dp.detectDrift(hourlySeries("e1", 72, func(i int) float64 { return 20 + noisyAt(i) })))
}

func TestFlatlineDetector(t *testing.T) {
	points := hourlySeries("e1", 60, func(i int) float64 {
		if i >= 48 {
			return 20
		}
		return 20 + noisyAt(i)
	})

	flats := newTestPipeline().detectFlatline(points)
	require.Len(t, flats, 1)

	f := flats[0]
	assert.Equal(t, models.TypeFlatline, f.Type)
	assert.Equal(t, models.SeverityWarning, f.Severity)
	assert.Equal(t, 60.0, f.Score)
	assert.Equal(t, 20.0, f.Value)
	assert.Equal(t, 12, f.Context.RunLength)
}

func TestFlatlineDetectorNeedsExactRun(t *testing.T) {
	dp := newTestPipeline()

	// One differing value inside the run suppresses it.
	points := hourlySeries("e1", 60, func(i int) float64 {
		if i == 55 {
			return 20.0001
		}
		if i >= 48 {
			return 20
		}
		return 20 + noisyAt(i)
	})
	assert.Empty(t, dp.detectFlatline(points))

	assert.Empty(t, dp.detectFlatline(hourlySeries("e1", 11, func(int) float64 { return 20 })))
}

func TestSeasonalDetectorHourly(t *testing.T) {
	points := hourlySeries("e1", 24*8, func(i int) float64 { return 20 + noisyAt(i) })
	profile := buildProfile("e1", points)

	// Push the latest point far outside its hourly bucket.
	points[len(points)-1].Value = 30
	anomalies := newTestPipeline().detectSeasonal(points, profile)

	require.NotEmpty(t, anomalies)
	hourly := anomalies[0]
	assert.Equal(t, models.TypeSeasonal, hourly.Type)
	assert.NotEmpty(t, hourly.Context.HourStr)
	assert.GreaterOrEqual(t, hourly.Context.ZScore, 3.0)
}

func TestSeasonalDetectorWeekday(t *testing.T) {
	points := hourlySeries("e1", 24*8, func(i int) float64 { return 20 + noisyAt(i) })
	profile := buildProfile("e1", points)

	points[len(points)-1].Value = 60
	anomalies := newTestPipeline().detectSeasonal(points, profile)

	var weekday []models.Anomaly
	for _, a := range anomalies {
		if a.Context.WeekdayName != "" {
			weekday = append(weekday, a)
		}
	}
	require.Len(t, weekday, 1)
	assert.Equal(t, models.SeverityCritical, weekday[0].Severity,
		"the weekday check only fires at the critical threshold")
}

func TestSeasonalDetectorMinPoints(t *testing.T) {
	points := hourlySeries("e1", 167, func(i int) float64 { return 20 + noisyAt(i) })
	profile := buildProfile("e1", points)
	points[len(points)-1].Value = 60

	assert.Empty(t, newTestPipeline().detectSeasonal(points, profile))
}

func TestFrequencyDetector(t *testing.T) {
	// First half hourly, second half every 3 hours: a 200% interval change.
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	var points []models.DataPoint
	ts := base
	for i := 0; i < 30; i++ {
		points = append(points, models.DataPoint{EntityID: "e1", Value: 20, Timestamp: ts})
		ts = ts.Add(time.Hour)
	}
	for i := 0; i < 30; i++ {
		points = append(points, models.DataPoint{EntityID: "e1", Value: 20, Timestamp: ts})
		ts = ts.Add(3 * time.Hour)
	}

	anomalies := newTestPipeline().detectFrequency(points)
	require.Len(t, anomalies, 1)

	f := anomalies[0]
	assert.Equal(t, models.TypeFrequency, f.Type)
	assert.Equal(t, models.SeverityCritical, f.Severity)
	assert.Greater(t, f.Context.ChangeRatio, 1.0)
	assert.Greater(t, f.Context.IntervalAfter, f.Context.IntervalBefore)
}

func TestFrequencyDetectorStableCadence(t *testing.T) {
	points := hourlySeries("e1", 100, func(i int) float64 { return 20 + noisyAt(i) })
	assert.Empty(t, newTestPipeline().detectFrequency(points))
}

func TestFrequencyDetectorWarningBand(t *testing.T) {
	// 75% interval change: flagged, but below the critical doubling.
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	var points []models.DataPoint
	ts := base
	for i := 0; i < 30; i++ {
		points = append(points, models.DataPoint{EntityID: "e1", Value: 20, Timestamp: ts})
		ts = ts.Add(time.Hour)
	}
	for i := 0; i < 30; i++ {
		points = append(points, models.DataPoint{EntityID: "e1", Value: 20, Timestamp: ts})
		ts = ts.Add(time.Hour + 45*time.Minute)
	}

	anomalies := newTestPipeline().detectFrequency(points)
	require.Len(t, anomalies, 1)
	assert.Equal(t, models.SeverityWarning, anomalies[0].Severity)
}
