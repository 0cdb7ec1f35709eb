package util

import (
	"fmt"
	"math"
)

// Fairness summarizes how evenly lock grants were spread across competing workers
type Fairness struct {
	Workers      int     `json:"workers"`
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`

	// Score is 1 if every worker got the same number of grants and approaches 0
	// the more a few workers dominate
	Score float64 `json:"score"`
}

// NewFairness computes the fairness of the grant counts of all workers
func NewFairness(grants []float64) Fairness {
	if len(grants) == 0 {
		return Fairness{}
	}

	lo, hi := grants[0], grants[0]
	var sum float64
	for _, g := range grants {
		sum += g
		lo = math.Min(lo, g)
		hi = math.Max(hi, g)
	}
	mean := sum / float64(len(grants))

	var sumSquaredDiffs float64
	for _, g := range grants {
		diff := g - mean
		sumSquaredDiffs += diff * diff
	}
	stdDev := math.Sqrt(sumSquaredDiffs / float64(len(grants)))

	minMaxRatio := 1.0
	if hi > 0 {
		minMaxRatio = lo / hi
	}

	// coefficient of variation
	var cv float64
	if mean > 0 {
		cv = stdDev / mean
	}

	return Fairness{
		Workers:      len(grants),
		StdDeviation: stdDev,
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		MinMaxRatio:  minMaxRatio,
		Score:        (1.0-math.Min(1.0, cv))*0.5 + minMaxRatio*0.5,
	}
}

func (f Fairness) String() string {
	return fmt.Sprintf("workers=%d grants/worker min=%.0f max=%.0f mean=%.1f stddev=%.1f score=%.2f",
		f.Workers, f.Min, f.Max, f.Mean, f.StdDeviation, f.Score)
}
