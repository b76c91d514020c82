package analytics

import (
	"sync"
	"time"

	"iot-anomaly-engine/models"
)

// PatternProfiler rebuilds per-entity statistical baselines from the
// retained history. Profiles are recomputed wholesale, never incrementally,
// so two runs over the same history produce identical results.
type PatternProfiler struct {
	mu        sync.RWMutex
	profiles  map[string]*models.PatternProfile
	minPoints int
}

func NewPatternProfiler(minPoints int) *PatternProfiler {
	return &PatternProfiler{
		profiles:  make(map[string]*models.PatternProfile),
		minPoints: minPoints,
	}
}

// Learn recomputes the profile for one entity from its history snapshot.
// Entities with fewer than minPoints retained points produce no profile.
func (pp *PatternProfiler) Learn(entityID string, points []models.DataPoint) *models.PatternProfile {
	if len(points) < pp.minPoints {
		return nil
	}

	profile := buildProfile(entityID, points)

	pp.mu.Lock()
	pp.profiles[entityID] = profile
	pp.mu.Unlock()

	return profile
}

// Profile returns the current profile for an entity, or nil when none has
// been learned.
func (pp *PatternProfiler) Profile(entityID string) *models.PatternProfile {
	pp.mu.RLock()
	defer pp.mu.RUnlock()
	return pp.profiles[entityID]
}

// Count reports how many entities currently hold a profile.
func (pp *PatternProfiler) Count() int {
	pp.mu.RLock()
	defer pp.mu.RUnlock()
	return len(pp.profiles)
}

// Forget drops the learned profile for an entity, used when its history is
// cleared.
func (pp *PatternProfiler) Forget(entityID string) {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	delete(pp.profiles, entityID)
}

// weekdayIndex maps Go's Sunday-first weekday to the Monday=0 convention
// used by the daily buckets.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func buildProfile(entityID string, points []models.DataPoint) *models.PatternProfile {
	values := pointValues(points)

	profile := &models.PatternProfile{
		EntityID:    entityID,
		TotalPoints: len(points),
		LastUpdated: time.Now().UTC(),
		MinValue:    values[0],
		MaxValue:    values[0],
	}

	profile.GlobalMean = mean(values)
	profile.GlobalStd = sampleStd(values, profile.GlobalMean)
	for _, v := range values {
		if v < profile.MinValue {
			profile.MinValue = v
		}
		if v > profile.MaxValue {
			profile.MaxValue = v
		}
	}

	var hourly [24][]float64
	var daily [7][]float64
	for _, p := range points {
		h := p.Timestamp.Hour()
		d := weekdayIndex(p.Timestamp)
		hourly[h] = append(hourly[h], p.Value)
		daily[d] = append(daily[d], p.Value)
	}

	for h := 0; h < 24; h++ {
		if len(hourly[h]) == 0 {
			continue
		}
		m := mean(hourly[h])
		profile.HourlySeen[h] = true
		profile.HourlyCounts[h] = len(hourly[h])
		profile.HourlyMeans[h] = m
		profile.HourlyStds[h] = sampleStd(hourly[h], m)
	}

	for d := 0; d < 7; d++ {
		if len(daily[d]) == 0 {
			continue
		}
		m := mean(daily[d])
		profile.DailySeen[d] = true
		profile.DailyCounts[d] = len(daily[d])
		profile.DailyMeans[d] = m
		profile.DailyStds[d] = sampleStd(daily[d], m)
	}

	return profile
}
