package models

import (
	"errors"
	"time"
)

// DataPoint is a single stored reading for one entity. Immutable once
// appended to the entity's history.
type DataPoint struct {
	EntityID   string         `json:"entity_id"`
	Value      float64        `json:"value"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Reading is the wire form of a data point as accepted on the ingestion
// boundary. Value is a pointer so a missing field can be told apart from 0.
type Reading struct {
	EntityID   string         `json:"entity_id"`
	Value      *float64       `json:"value"`
	Timestamp  string         `json:"timestamp,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (r *Reading) Validate() error {
	if r.EntityID == "" {
		return errors.New("entity_id is required")
	}

	if r.Value == nil {
		return errors.New("value is required")
	}

	if r.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, r.Timestamp); err != nil {
			return errors.New("invalid timestamp format, expected RFC3339")
		}
	}

	return nil
}

// At returns the reading's timestamp, falling back to the current UTC time
// when the field is absent or unparsable.
func (r *Reading) At() time.Time {
	if r.Timestamp == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

// Point converts a validated reading into its stored form.
func (r *Reading) Point() DataPoint {
	return DataPoint{
		EntityID:   r.EntityID,
		Value:      *r.Value,
		Timestamp:  r.At(),
		Attributes: r.Attributes,
	}
}
