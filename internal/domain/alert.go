package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Severity labels used by upstream feeds, ordered least to most urgent.
const (
	SeverityMinor    = "minor"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
	SeverityExtreme  = "extreme"
)

// AlertRecord is a single severe-weather alert as pushed by an upstream
// feed. Records are immutable once constructed; derived data (fingerprints,
// priority assessments) lives in other packages.
type AlertRecord struct {
	ID                  string    `json:"id"`
	Type                string    `json:"type"`
	Severity            string    `json:"severity"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	PopulationAffected  int64     `json:"population_affected"`
	InfrastructureScore float64   `json:"infrastructure_score"`
	WindSpeed           *float64  `json:"wind_speed,omitempty"`     // mph, absent when not reported
	Precipitation       *float64  `json:"precipitation,omitempty"`  // mm, absent when not reported
	Timestamp           time.Time `json:"timestamp"`
}

// rawAlert mirrors the upstream JSON shape with the timestamp as a string,
// since feeds send RFC 3339 with varying precision.
type rawAlert struct {
	ID                  string   `json:"id"`
	Type                string   `json:"type"`
	Severity            string   `json:"severity"`
	Latitude            float64  `json:"latitude"`
	Longitude           float64  `json:"longitude"`
	PopulationAffected  int64    `json:"population_affected"`
	InfrastructureScore float64  `json:"infrastructure_score"`
	WindSpeed           *float64 `json:"wind_speed"`
	Precipitation       *float64 `json:"precipitation"`
	Timestamp           string   `json:"timestamp"`
}

// ParseAlertRecord deserializes and validates an upstream alert payload.
// Contract violations (missing required fields, out-of-range values) fail
// here rather than surfacing downstream.
func ParseAlertRecord(data []byte) (AlertRecord, error) {
	var raw rawAlert
	if err := json.Unmarshal(data, &raw); err != nil {
		return AlertRecord{}, fmt.Errorf("parse alert record: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, raw.Timestamp)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse alert record: invalid timestamp %q: %w", raw.Timestamp, err)
	}

	rec := AlertRecord{
		ID:                  strings.TrimSpace(raw.ID),
		Type:                strings.TrimSpace(raw.Type),
		Severity:            strings.ToLower(strings.TrimSpace(raw.Severity)),
		Latitude:            raw.Latitude,
		Longitude:           raw.Longitude,
		PopulationAffected:  raw.PopulationAffected,
		InfrastructureScore: raw.InfrastructureScore,
		WindSpeed:           raw.WindSpeed,
		Precipitation:       raw.Precipitation,
		Timestamp:           ts,
	}

	if err := rec.Validate(); err != nil {
		return AlertRecord{}, err
	}
	return rec, nil
}

// Validate checks the construction contract for a record.
func (r AlertRecord) Validate() error {
	switch {
	case r.ID == "":
		return errors.New("alert record: missing id")
	case r.Type == "":
		return errors.New("alert record: missing type")
	case r.Severity == "":
		return errors.New("alert record: missing severity")
	case r.Timestamp.IsZero():
		return errors.New("alert record: missing timestamp")
	case r.Latitude < -90 || r.Latitude > 90:
		return fmt.Errorf("alert record %s: latitude %.4f out of range", r.ID, r.Latitude)
	case r.Longitude < -180 || r.Longitude > 180:
		return fmt.Errorf("alert record %s: longitude %.4f out of range", r.ID, r.Longitude)
	case r.PopulationAffected < 0:
		return fmt.Errorf("alert record %s: negative population", r.ID)
	case r.InfrastructureScore < 0 || r.InfrastructureScore > 1:
		return fmt.Errorf("alert record %s: infrastructure score %.4f out of [0,1]", r.ID, r.InfrastructureScore)
	}
	return nil
}
