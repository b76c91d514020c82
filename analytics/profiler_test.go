package analytics

import (
	"math"
	"testing"
	"time"

	"iot-anomaly-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilerSkipsShortHistories(t *testing.T) {
	pp := NewPatternProfiler(24)

	points := hourlySeries("e1", 23, func(i int) float64 { return float64(i) })
	assert.Nil(t, pp.Learn("e1", points))
	assert.Nil(t, pp.Profile("e1"))
	assert.Equal(t, 0, pp.Count())
}

func TestProfilerGlobalStats(t *testing.T) {
	pp := NewPatternProfiler(24)

	// Alternating 18/22: mean 20, sample std just above 2.
	points := hourlySeries("e1", 48, func(i int) float64 {
		if i%2 == 0 {
			return 18
		}
		return 22
	})
	profile := pp.Learn("e1", points)
	require.NotNil(t, profile)

	assert.Equal(t, "e1", profile.EntityID)
	assert.Equal(t, 48, profile.TotalPoints)
	assert.InDelta(t, 20.0, profile.GlobalMean, 1e-9)
	assert.InDelta(t, 2.0, profile.GlobalStd, 0.05)
	assert.Equal(t, 18.0, profile.MinValue)
	assert.Equal(t, 22.0, profile.MaxValue)
}

func TestProfilerHourlyBuckets(t *testing.T) {
	pp := NewPatternProfiler(24)

	// 96 hourly points: every hour-of-day bucket gets 4 samples, and the
	// value depends only on the hour, so each bucket has zero spread.
	points := hourlySeries("e1", 96, func(i int) float64 { return float64(i % 24) })
	profile := pp.Learn("e1", points)
	require.NotNil(t, profile)

	for h := 0; h < 24; h++ {
		require.True(t, profile.HourlySeen[h])
		assert.Equal(t, 4, profile.HourlyCounts[h])
		assert.InDelta(t, float64(h), profile.HourlyMeans[h], 1e-9)
		assert.Equal(t, 0.0, profile.HourlyStds[h])

		// Zero spread means no baseline, not an exact-value signal.
		_, _, ok := profile.HourBaseline(h)
		assert.False(t, ok)
		m, ok := profile.HourMean(h)
		assert.True(t, ok)
		assert.InDelta(t, float64(h), m, 1e-9)
	}
}

func TestProfilerDailyBucketsMondayFirst(t *testing.T) {
	pp := NewPatternProfiler(24)

	// Series starts on a Monday at 00:00; the first 24 points are all
	// Monday (index 0), the next 24 Tuesday, and so on.
	points := hourlySeries("e1", 7*24, func(i int) float64 { return float64(i / 24) })
	profile := pp.Learn("e1", points)
	require.NotNil(t, profile)

	for d := 0; d < 7; d++ {
		require.True(t, profile.DailySeen[d])
		assert.Equal(t, 24, profile.DailyCounts[d])
		assert.InDelta(t, float64(d), profile.DailyMeans[d], 1e-9)
	}
}

func TestProfilerSingleSampleBucketHasNoBaseline(t *testing.T) {
	pp := NewPatternProfiler(24)

	// 24 points, one per hour-of-day: every bucket has exactly one sample.
	points := hourlySeries("e1", 24, func(i int) float64 { return 20 + float64(i) })
	profile := pp.Learn("e1", points)
	require.NotNil(t, profile)

	for h := 0; h < 24; h++ {
		assert.Equal(t, 1, profile.HourlyCounts[h])
		assert.Equal(t, 0.0, profile.HourlyStds[h])
		_, _, ok := profile.HourBaseline(h)
		assert.False(t, ok)
	}
}

func TestProfilerSampleStdEstimator(t *testing.T) {
	// n-1 estimator on {1,2,3,4}: variance 5/3.
	values := []float64{1, 2, 3, 4}
	got := sampleStd(values, mean(values))
	assert.InDelta(t, math.Sqrt(5.0/3.0), got, 1e-9)

	assert.Equal(t, 0.0, sampleStd([]float64{5}, 5))
	assert.Equal(t, 0.0, sampleStd(nil, 0))
}

func TestProfilerIdempotent(t *testing.T) {
	pp := NewPatternProfiler(24)
	points := hourlySeries("e1", 100, func(i int) float64 { return math.Sin(float64(i)) * 10 })

	first := pp.Learn("e1", points)
	second := pp.Learn("e1", points)
	require.NotNil(t, first)
	require.NotNil(t, second)

	// The profile is a pure function of the history; only the rebuild
	// timestamp may differ.
	first.LastUpdated = time.Time{}
	second.LastUpdated = time.Time{}
	assert.Equal(t, first, second)
}

func TestProfilerForget(t *testing.T) {
	pp := NewPatternProfiler(24)
	pp.Learn("e1", hourlySeries("e1", 30, func(int) float64 { return 1 }))
	require.NotNil(t, pp.Profile("e1"))

	pp.Forget("e1")
	assert.Nil(t, pp.Profile("e1"))
}

func TestWeekdayIndex(t *testing.T) {
	monday := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())

	assert.Equal(t, 0, weekdayIndex(monday))
	assert.Equal(t, 6, weekdayIndex(monday.AddDate(0, 0, 6))) // Sunday
}

func TestProfileViewSparseBuckets(t *testing.T) {
	pp := NewPatternProfiler(24)

	// All points in the same three hours of day.
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	var points []models.DataPoint
	for day := 0; day < 10; day++ {
		for _, h := range []int{3, 4, 5} {
			points = append(points, models.DataPoint{
				EntityID:  "e1",
				Value:     42,
				Timestamp: base.AddDate(0, 0, day).Add(time.Duration(h) * time.Hour),
			})
		}
	}

	profile := pp.Learn("e1", points)
	require.NotNil(t, profile)

	view := profile.View()
	assert.Len(t, view.HourlyMeans, 3, "unseen buckets must be absent")
	assert.Contains(t, view.HourlyMeans, 3)
	assert.Contains(t, view.HourlyMeans, 4)
	assert.Contains(t, view.HourlyMeans, 5)
	assert.NotContains(t, view.HourlyMeans, 0)
}
