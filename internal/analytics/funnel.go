package analytics

import "math"

// FunnelStage is one observed step of a conversion pipeline. ObservedRate is a
// percentage of the previous stage.
type FunnelStage struct {
	StageID       string  `json:"stage_id" yaml:"stage_id"`
	ObservedCount float64 `json:"observed_count" yaml:"observed_count"`
	ObservedRate  float64 `json:"observed_rate" yaml:"observed_rate"`
}

// FunnelStageResult compares a stage against its benchmark.
type FunnelStageResult struct {
	FunnelStage      `yaml:",inline"`
	BenchmarkRate    float64 `json:"benchmark_rate" yaml:"benchmark_rate"`
	Gap              float64 `json:"gap" yaml:"gap"`
	RecoverableCount float64 `json:"recoverable_count" yaml:"recoverable_count"`
}

// Benchmarks maps stage identifiers to reference conversion rates in percent.
type Benchmarks map[string]float64

// DefaultBenchmarks are the reference rates used when none are configured.
func DefaultBenchmarks() Benchmarks {
	return Benchmarks{
		"registration": 12,
		"attendance":   85,
		"feedback":     40,
	}
}

// RateFor returns the benchmark for stageID, or observed when none is registered.
func (b Benchmarks) RateFor(stageID string, observed float64) float64 {
	if rate, ok := b[stageID]; ok {
		return rate
	}
	return observed
}

// OptimizeFunnel estimates how many conversions each stage loses against its
// benchmark. Stages must be in pipeline order: for every stage after the first the
// rate gap is applied to the previous stage's count, since that is the volume
// flowing into it.
func OptimizeFunnel(stages []FunnelStage, benchmarks Benchmarks) []FunnelStageResult {
	results := make([]FunnelStageResult, len(stages))
	for i, stage := range stages {
		benchmark := benchmarks.RateFor(stage.StageID, stage.ObservedRate)
		gap := benchmark - stage.ObservedRate

		var recoverable float64
		if i == 0 {
			recoverable = math.Round(gap)
		} else {
			recoverable = math.Round(gap * stages[i-1].ObservedCount / 100)
		}

		results[i] = FunnelStageResult{
			FunnelStage:      stage,
			BenchmarkRate:    benchmark,
			Gap:              gap,
			RecoverableCount: nonNegative(recoverable),
		}
	}
	return results
}

// StageCount is a raw count for a named funnel stage.
type StageCount struct {
	StageID string  `json:"stage_id" yaml:"stage_id"`
	Count   float64 `json:"count" yaml:"count"`
}

// BuildFunnel derives observed rates from consecutive stage counts. The first stage
// is 100%; a stage following an empty stage has rate 0.
func BuildFunnel(counts []StageCount) []FunnelStage {
	stages := make([]FunnelStage, len(counts))
	for i, c := range counts {
		rate := 100.0
		if i > 0 {
			rate = 0
			if prev := counts[i-1].Count; prev != 0 {
				rate = c.Count / prev * 100
			}
		}
		stages[i] = FunnelStage{
			StageID:       c.StageID,
			ObservedCount: c.Count,
			ObservedRate:  rate,
		}
	}
	return stages
}
