// Package priority scores alerts with a fixed deterministic weighted model
// and bins the score into delivery tiers.
package priority

import (
	"math"
	"sort"

	"github.com/couchcryptid/storm-alert-triage/internal/domain"
)

// Tier is the discretized priority classification of an alert.
type Tier string

const (
	TierLow      Tier = "LOW"
	TierMedium   Tier = "MEDIUM"
	TierHigh     Tier = "HIGH"
	TierCritical Tier = "CRITICAL"
)

// Rank orders tiers for threshold comparisons; higher is more urgent.
// Unknown tiers rank below LOW.
func (t Tier) Rank() int {
	switch t {
	case TierLow:
		return 1
	case TierMedium:
		return 2
	case TierHigh:
		return 3
	case TierCritical:
		return 4
	default:
		return 0
	}
}

// Factor names carried in the assessment breakdown for audit.
const (
	FactorSeverity       = "severity_score"
	FactorPopulation     = "population_log"
	FactorInfrastructure = "infrastructure_score"
	FactorWind           = "wind_factor"
	FactorPrecipitation  = "precipitation_factor"
)

// severityScores maps categorical severity to a normalized feature value.
// Unrecognized labels score 0.5 rather than failing: an unknown severity
// from a new feed should not silently drop to the bottom of the queue.
var severityScores = map[string]float64{
	domain.SeverityMinor:    0.2,
	domain.SeverityModerate: 0.4,
	domain.SeveritySevere:   0.7,
	domain.SeverityExtreme:  1.0,
}

// Feature weights, in the order severity, population, infrastructure,
// wind, precipitation. They sum to 1 so the clipped score stays meaningful.
const (
	weightSeverity       = 0.25
	weightPopulation     = 0.30
	weightInfrastructure = 0.20
	weightWind           = 0.15
	weightPrecipitation  = 0.10
)

// Assessment is the derived, immutable priority of one alert. It is
// recomputed on every call, never cached.
type Assessment struct {
	AlertID string             `json:"alert_id"`
	Score   float64            `json:"score"`
	Tier    Tier               `json:"tier"`
	Factors map[string]float64 `json:"factors"`
}

// Scorer computes priority assessments. The zero value is ready to use;
// the type exists so callers depend on behavior, not free functions.
type Scorer struct{}

// NewScorer returns a Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate derives the weighted score and tier for one alert. Pure:
// identical input always yields identical output.
func (s *Scorer) Calculate(alert domain.AlertRecord) Assessment {
	factors := extractFactors(alert)

	score := factors[FactorSeverity]*weightSeverity +
		factors[FactorPopulation]*weightPopulation +
		factors[FactorInfrastructure]*weightInfrastructure +
		factors[FactorWind]*weightWind +
		factors[FactorPrecipitation]*weightPrecipitation
	score = clip01(score)

	return Assessment{
		AlertID: alert.ID,
		Score:   score,
		Tier:    TierFor(score),
		Factors: factors,
	}
}

// PrioritizeBatch scores every alert and returns the assessments sorted by
// score descending. The sort is stable: ties keep input order.
func (s *Scorer) PrioritizeBatch(alerts []domain.AlertRecord) []Assessment {
	out := make([]Assessment, len(alerts))
	for i, alert := range alerts {
		out[i] = s.Calculate(alert)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// TierFor bins a score into its tier. The bins are half-open, contiguous,
// and cover [0,1] exactly; 1.0 itself is CRITICAL.
func TierFor(score float64) Tier {
	switch {
	case score < 0.3:
		return TierLow
	case score < 0.6:
		return TierMedium
	case score < 0.8:
		return TierHigh
	default:
		return TierCritical
	}
}

// extractFactors normalizes the raw record fields into [0,1]-scaled
// features. Absent optional measurements contribute 0.
func extractFactors(alert domain.AlertRecord) map[string]float64 {
	severity, ok := severityScores[alert.Severity]
	if !ok {
		severity = 0.5
	}

	wind := 0.0
	if alert.WindSpeed != nil {
		wind = *alert.WindSpeed / 200
	}
	precip := 0.0
	if alert.Precipitation != nil {
		precip = *alert.Precipitation / 500
	}

	return map[string]float64{
		FactorSeverity:       severity,
		FactorPopulation:     math.Log1p(float64(alert.PopulationAffected)) / 15,
		FactorInfrastructure: alert.InfrastructureScore,
		FactorWind:           wind,
		FactorPrecipitation:  precip,
	}
}

func clip01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
