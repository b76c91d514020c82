package models

import "time"

// PatternProfile is the learned statistical baseline for one entity.
// Hourly and daily buckets are fixed-size arrays with an explicit seen bit
// per slot, so "no data for this bucket" is never conflated with a zero
// standard deviation.
type PatternProfile struct {
	EntityID    string    `json:"entity_id"`
	GlobalMean  float64   `json:"global_mean"`
	GlobalStd   float64   `json:"global_std"`
	MinValue    float64   `json:"min_value"`
	MaxValue    float64   `json:"max_value"`
	TotalPoints int       `json:"total_points"`
	LastUpdated time.Time `json:"last_updated"`

	HourlyMeans  [24]float64 `json:"-"`
	HourlyStds   [24]float64 `json:"-"`
	HourlyCounts [24]int     `json:"-"`
	HourlySeen   [24]bool    `json:"-"`

	DailyMeans  [7]float64 `json:"-"`
	DailyStds   [7]float64 `json:"-"`
	DailyCounts [7]int     `json:"-"`
	DailySeen   [7]bool    `json:"-"`
}

// HourBaseline reports the baseline for an hour-of-day bucket. ok is false
// when the bucket has fewer than two samples or zero spread, which callers
// must treat as "no baseline", not as an exact-value signal.
func (p *PatternProfile) HourBaseline(hour int) (mean, std float64, ok bool) {
	if hour < 0 || hour > 23 || !p.HourlySeen[hour] {
		return 0, 0, false
	}
	if p.HourlyCounts[hour] < 2 || p.HourlyStds[hour] <= 0 {
		return p.HourlyMeans[hour], 0, false
	}
	return p.HourlyMeans[hour], p.HourlyStds[hour], true
}

// HourMean reports just the bucket mean, usable as an expected value even
// when the spread is too thin for z-scoring.
func (p *PatternProfile) HourMean(hour int) (float64, bool) {
	if hour < 0 || hour > 23 || !p.HourlySeen[hour] {
		return 0, false
	}
	return p.HourlyMeans[hour], true
}

// WeekdayBaseline reports the baseline for a weekday bucket (Monday=0).
func (p *PatternProfile) WeekdayBaseline(day int) (mean, std float64, ok bool) {
	if day < 0 || day > 6 || !p.DailySeen[day] {
		return 0, 0, false
	}
	if p.DailyCounts[day] < 2 || p.DailyStds[day] <= 0 {
		return p.DailyMeans[day], 0, false
	}
	return p.DailyMeans[day], p.DailyStds[day], true
}

// ProfileView is the JSON form of a profile served on the query boundary.
// Buckets without samples are simply absent from the maps.
type ProfileView struct {
	EntityID    string          `json:"entity_id"`
	GlobalMean  float64         `json:"global_mean"`
	GlobalStd   float64         `json:"global_std"`
	MinValue    float64         `json:"min_value"`
	MaxValue    float64         `json:"max_value"`
	TotalPoints int             `json:"total_points"`
	LastUpdated time.Time       `json:"last_updated"`
	HourlyMeans map[int]float64 `json:"hourly_means"`
	HourlyStds  map[int]float64 `json:"hourly_stds"`
	DailyMeans  map[int]float64 `json:"daily_means"`
	DailyStds   map[int]float64 `json:"daily_stds"`
}

func (p *PatternProfile) View() ProfileView {
	v := ProfileView{
		EntityID:    p.EntityID,
		GlobalMean:  p.GlobalMean,
		GlobalStd:   p.GlobalStd,
		MinValue:    p.MinValue,
		MaxValue:    p.MaxValue,
		TotalPoints: p.TotalPoints,
		LastUpdated: p.LastUpdated,
		HourlyMeans: make(map[int]float64),
		HourlyStds:  make(map[int]float64),
		DailyMeans:  make(map[int]float64),
		DailyStds:   make(map[int]float64),
	}
	for h := 0; h < 24; h++ {
		if p.HourlySeen[h] {
			v.HourlyMeans[h] = p.HourlyMeans[h]
			v.HourlyStds[h] = p.HourlyStds[h]
		}
	}
	for d := 0; d < 7; d++ {
		if p.DailySeen[d] {
			v.DailyMeans[d] = p.DailyMeans[d]
			v.DailyStds[d] = p.DailyStds[d]
		}
	}
	return v
}

// CorrelationPair is a learned Pearson correlation between two entities,
// keyed by the unordered pair of IDs.
type CorrelationPair struct {
	EntityA     string  `json:"entity_a"`
	EntityB     string  `json:"entity_b"`
	Correlation float64 `json:"correlation"`
	SampleCount int     `json:"sample_count"`
}
