// Package stats compares samplers through the histograms of their samples.
package stats

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/fumin/qmc/sampler"
)

// Histogram sweeps s n times and counts the visits of every configuration by its index.
func Histogram(s sampler.Sampler, n int) []float64 {
	return HistogramProgress(s, n, nil)
}

// HistogramProgress is Histogram calling progress after every sweep, unless progress is nil.
func HistogramProgress(s sampler.Sampler, n int, progress func()) []float64 {
	hi := s.Hilbert()
	hist := make([]float64, hi.NumStates())
	for range n {
		s.Sweep()
		hist[hi.StateToNumber(s.Visible())]++
		if progress != nil {
			progress()
		}
	}
	return hist
}

// NumSamples returns the number of samples for comparing histograms over numStates states.
func NumSamples(numStates int) int {
	return max(10*numStates, 10000)
}

// L1 returns the discrepancy statistic of two histograms of n samples each,
//
//	z = sqrt(|Σ_i ((h1_i - h2_i)² - h1_i - h2_i)|) / n
//
// which is of order sqrt(1/n) for independent samples of the same distribution.
// It panics if the histograms have different lengths.
func L1(h1, h2 []float64, n int) float64 {
	z, err := l1(h1, h2, n)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return z
}

func l1(h1, h2 []float64, n int) (float64, error) {
	if len(h1) != len(h2) {
		return math.NaN(), errors.Errorf("%d %d", len(h1), len(h2))
	}
	if n <= 0 {
		return math.NaN(), errors.Errorf("%d samples", n)
	}
	diff := make([]float64, len(h1))
	floats.SubTo(diff, h1, h2)
	sum := floats.Dot(diff, diff) - floats.Sum(h1) - floats.Sum(h2)
	return math.Sqrt(math.Abs(sum)) / float64(n), nil
}

// Tolerance returns the scale sqrt(1/n) of the statistic for n samples.
func Tolerance(n int) float64 {
	return math.Sqrt(1 / float64(n))
}

// Equivalent returns the statistic of two histograms and whether it is within 5 tolerances.
func Equivalent(h1, h2 []float64, n int) (float64, bool) {
	z := L1(h1, h2, n)
	return z, math.Abs(z) <= 5*Tolerance(n)
}
