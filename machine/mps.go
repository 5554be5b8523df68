package machine

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/fumin/qmc/hilbert"
)

const (
	// mpsLeftAxis is the axis of a_{l-1} in Figure 6, Ulrich Schollwock.
	mpsLeftAxis  = 0
	mpsUpAxis    = 1
	mpsRightAxis = 2
)

// MPS is a matrix product state with open boundaries.
// The amplitude of a configuration is the product of the matrices selected by each site's local state.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
type MPS struct {
	hi    *hilbert.Space
	sites []*tensor.Dense
}

// NewMPS wraps site tensors of shape {left, physical, right}.
func NewMPS(hi *hilbert.Space, sites []*tensor.Dense) (*MPS, error) {
	if !hi.IsFinite() {
		return nil, errors.Errorf("%v has unbounded local states", hi)
	}
	if len(sites) != hi.Size() {
		return nil, errors.Errorf("%d sites, expected %d", len(sites), hi.Size())
	}
	for i, s := range sites {
		shape := s.Shape()
		if len(shape) != 3 {
			return nil, errors.Errorf("site %d shape %v", i, shape)
		}
		if shape[mpsUpAxis] != hi.LocalSize(i) {
			return nil, errors.Errorf("site %d physical dimension %d, expected %d", i, shape[mpsUpAxis], hi.LocalSize(i))
		}
		switch {
		case i == 0 && shape[mpsLeftAxis] != 1:
			return nil, errors.Errorf("first site shape %v", shape)
		case i == len(sites)-1 && shape[mpsRightAxis] != 1:
			return nil, errors.Errorf("last site shape %v", shape)
		case i > 0 && sites[i-1].Shape()[mpsRightAxis] != shape[mpsLeftAxis]:
			return nil, errors.Errorf("site %d shape %v does not match %v", i, shape, sites[i-1].Shape())
		}
	}
	return &MPS{hi: hi, sites: sites}, nil
}

// RandMPS creates a matrix product state with bond dimension at most maxD.
// Entries are 1 plus complex Gaussian noise of standard deviation sigma, so that no amplitude vanishes for small sigma.
func RandMPS(hi *hilbert.Space, maxD int, seed uint64, sigma float64) (*MPS, error) {
	if maxD <= 0 {
		return nil, errors.Errorf("%d", maxD)
	}
	if !hi.IsFinite() {
		return nil, errors.Errorf("%v has unbounded local states", hi)
	}
	rng := newRand(seed)
	n := hi.Size()
	sites := make([]*tensor.Dense, 0, n)
	leftD := 1
	for i := range n {
		rightD := maxD
		if i == n-1 {
			rightD = 1
		}
		t := tensor.Zeros(leftD, hi.LocalSize(i), rightD)
		for ijk := range t.All() {
			v := 1 + gaussian(rng, sigma)
			t.SetAt(ijk, complex64(v))
		}
		sites = append(sites, t)
		leftD = rightD
	}
	m, err := NewMPS(hi, sites)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return m, nil
}

func (m *MPS) Hilbert() *hilbert.Space { return m.hi }

// LogVal contracts the chain from left to right, rescaling after every site to avoid overflow.
func (m *MPS) LogVal(v []float64) complex128 {
	if len(v) != len(m.sites) {
		panic(fmt.Sprintf("%d %d", len(v), len(m.sites)))
	}
	var logScale float64
	vec := []complex128{1}
	for i, s := range m.sites {
		k, ok := m.hi.LocalIndex(i, v[i])
		if !ok {
			panic(fmt.Sprintf("site %d value %v", i, v[i]))
		}
		shape := s.Shape()
		next := make([]complex128, shape[mpsRightAxis])
		var norm float64
		for r := range next {
			for l, x := range vec {
				next[r] += x * complex128(s.At(l, k, r))
			}
			norm = math.Max(norm, cmplx.Abs(next[r]))
		}
		if norm == 0 {
			return complex(math.Inf(-1), 0)
		}
		for r := range next {
			next[r] /= complex(norm, 0)
		}
		logScale += math.Log(norm)
		vec = next
	}
	return complex(logScale, 0) + cmplx.Log(vec[0])
}
