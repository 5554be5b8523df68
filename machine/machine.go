// Package machine implements variational wavefunctions, the amplitude oracles sampled by package sampler.
package machine

import (
	"math"
	"math/cmplx"
	"math/rand/v2"

	"github.com/fumin/qmc/hilbert"
)

// Machine is a wavefunction over a discrete configuration space.
// LogVal returns log ψ(v); it must not modify v and must not have side effects.
type Machine interface {
	Hilbert() *hilbert.Space
	LogVal(v []float64) complex128
}

// lnCosh returns log(cosh(z)) without overflowing for large |Re z|.
func lnCosh(z complex128) complex128 {
	if real(z) < 0 {
		z = -z
	}
	return z + cmplx.Log(1+cmplx.Exp(-2*z)) - math.Ln2
}

func gaussian(rng *rand.Rand, sigma float64) complex128 {
	return complex(sigma*rng.NormFloat64(), sigma*rng.NormFloat64())
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
