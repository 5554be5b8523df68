package machine

import (
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/qmc/hilbert"
)

// RBMSpin is a restricted Boltzmann machine with complex parameters.
//
//	log ψ(v) = Σ_i a_i v_i + Σ_j log cosh(b_j + Σ_i v_i W_ij)
//
// The visible units take the raw local values of the configuration.
type RBMSpin struct {
	hi *hilbert.Space
	a  []complex128
	b  []complex128
	w  *mat.CDense
}

// NewRBMSpin returns a machine with alpha*Size() hidden units and zero parameters.
func NewRBMSpin(hi *hilbert.Space, alpha int) (*RBMSpin, error) {
	if alpha <= 0 {
		return nil, errors.Errorf("alpha must be positive, got %d", alpha)
	}
	nv, nh := hi.Size(), alpha*hi.Size()
	m := &RBMSpin{
		hi: hi,
		a:  make([]complex128, nv),
		b:  make([]complex128, nh),
		w:  mat.NewCDense(nv, nh, nil),
	}
	return m, nil
}

// InitRandomParameters draws every parameter from a complex Gaussian with standard deviation sigma
// on both the real and imaginary parts.
func (m *RBMSpin) InitRandomParameters(seed uint64, sigma float64) {
	initGaussian(newRand(seed), sigma, m.a, m.b, m.w)
}

func (m *RBMSpin) Hilbert() *hilbert.Space { return m.hi }

// NumHidden returns the number of hidden units.
func (m *RBMSpin) NumHidden() int { return len(m.b) }

func (m *RBMSpin) LogVal(v []float64) complex128 {
	if len(v) != len(m.a) {
		panic(fmt.Sprintf("%d %d", len(v), len(m.a)))
	}
	var lv complex128
	for i, vi := range v {
		lv += m.a[i] * complex(vi, 0)
	}
	for j, bj := range m.b {
		theta := bj
		for i, vi := range v {
			theta += m.w.At(i, j) * complex(vi, 0)
		}
		lv += lnCosh(theta)
	}
	return lv
}

// RBMMultiVal is a restricted Boltzmann machine whose visible layer one-hot encodes the local state of each site.
// It is suited to spaces with more than two local states, such as bosons.
type RBMMultiVal struct {
	hi *hilbert.Space
	// offset[i] is the first visible unit of site i.
	offset []int
	a      []complex128
	b      []complex128
	w      *mat.CDense
}

// NewRBMMultiVal returns a one-hot machine with alpha*Size() hidden units.
func NewRBMMultiVal(hi *hilbert.Space, alpha int) (*RBMMultiVal, error) {
	if alpha <= 0 {
		return nil, errors.Errorf("alpha must be positive, got %d", alpha)
	}
	if !hi.IsFinite() {
		return nil, errors.Errorf("%v has unbounded local states", hi)
	}
	offset := make([]int, hi.Size())
	nv := 0
	for i := range offset {
		offset[i] = nv
		nv += hi.LocalSize(i)
	}
	nh := alpha * hi.Size()
	m := &RBMMultiVal{
		hi:     hi,
		offset: offset,
		a:      make([]complex128, nv),
		b:      make([]complex128, nh),
		w:      mat.NewCDense(nv, nh, nil),
	}
	return m, nil
}

func (m *RBMMultiVal) InitRandomParameters(seed uint64, sigma float64) {
	initGaussian(newRand(seed), sigma, m.a, m.b, m.w)
}

func (m *RBMMultiVal) Hilbert() *hilbert.Space { return m.hi }

func (m *RBMMultiVal) LogVal(v []float64) complex128 {
	if len(v) != len(m.offset) {
		panic(fmt.Sprintf("%d %d", len(v), len(m.offset)))
	}
	// units are the active one-hot visible units.
	units := make([]int, len(v))
	var lv complex128
	for i, vi := range v {
		k, ok := m.hi.LocalIndex(i, vi)
		if !ok {
			panic(fmt.Sprintf("site %d value %v", i, vi))
		}
		units[i] = m.offset[i] + k
		lv += m.a[units[i]]
	}
	for j, bj := range m.b {
		theta := bj
		for _, u := range units {
			theta += m.w.At(u, j)
		}
		lv += lnCosh(theta)
	}
	return lv
}

func initGaussian(rng *rand.Rand, sigma float64, a, b []complex128, w *mat.CDense) {
	for i := range a {
		a[i] = gaussian(rng, sigma)
	}
	for j := range b {
		b[j] = gaussian(rng, sigma)
	}
	r, c := w.Dims()
	for i := range r {
		for j := range c {
			w.Set(i, j, gaussian(rng, sigma))
		}
	}
}
