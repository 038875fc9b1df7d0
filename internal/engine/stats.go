package engine

import "math"

// Baseline summarizes a comparison window of metric values. StdDev is the
// population standard deviation.
type Baseline struct {
	Count  int
	Mean   float64
	StdDev float64
	Max    float64
}

// ComputeBaseline runs a single Welford pass over the window.
func ComputeBaseline(values []float64) Baseline {
	var b Baseline
	var m2 float64

	for _, v := range values {
		b.Count++
		delta := v - b.Mean
		b.Mean += delta / float64(b.Count)
		m2 += delta * (v - b.Mean)

		if b.Count == 1 || v > b.Max {
			b.Max = v
		}
	}

	if b.Count >= 2 {
		b.StdDev = math.Sqrt(m2 / float64(b.Count))
	}
	return b
}

// HighestHistorical returns the window maximum. ok is false for an empty
// window.
func (b Baseline) HighestHistorical() (float64, bool) {
	if b.Count == 0 {
		return 0, false
	}
	return b.Max, true
}

// AvgPlus1SD returns mean + 1·stddev. The standard deviation of fewer than
// two values is undefined, so ok is false below that.
func (b Baseline) AvgPlus1SD() (float64, bool) {
	if b.Count < 2 {
		return 0, false
	}
	return b.Mean + b.StdDev, true
}
