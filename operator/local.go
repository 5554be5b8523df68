package operator

import (
	"fmt"
	"slices"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/fumin/qmc/hilbert"
)

var (
	// PauliX flips a spin-1/2 or a qubit.
	PauliX = [][]complex64{
		{0, 1},
		{1, 0},
	}
	// Exchange swaps the states of two spin-1/2 sites and leaves aligned pairs alone.
	Exchange = [][]complex64{
		{1, 0, 0, 0},
		{0, 0, 1, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 1},
	}
)

// LocalOperator is a sum of operators each acting on a few sites.
// The basis of an operator acting on sites (s_1, ..., s_k) enumerates the local states of
// s_1 as the most significant digit, like hilbert.Space does for whole configurations.
type LocalOperator struct {
	hi       *hilbert.Space
	mats     []*tensor.Dense
	actingOn [][]int
}

// NewLocalOperator returns the operator Σ_k ops[k] acting on sites actingOn[k].
func NewLocalOperator(hi *hilbert.Space, ops [][][]complex64, actingOn [][]int) (*LocalOperator, error) {
	if !hi.IsFinite() {
		return nil, errors.Errorf("%v has unbounded local states", hi)
	}
	if len(ops) != len(actingOn) {
		return nil, errors.Errorf("%d operators acting on %d site lists", len(ops), len(actingOn))
	}
	op := &LocalOperator{hi: hi}
	for k, o := range ops {
		if err := op.add(o, actingOn[k]); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("operator %d", k))
		}
	}
	return op, nil
}

func (op *LocalOperator) add(o [][]complex64, sites []int) error {
	if len(sites) == 0 {
		return errors.Errorf("no sites")
	}
	dim := 1
	for i, s := range sites {
		if s < 0 || s >= op.hi.Size() || slices.Contains(sites[:i], s) {
			return errors.Errorf("invalid sites %v", sites)
		}
		dim *= op.hi.LocalSize(s)
	}
	if len(o) != dim {
		return errors.Errorf("%d rows, expected %d", len(o), dim)
	}
	for i, row := range o {
		if len(row) != dim {
			return errors.Errorf("row %d has %d columns, expected %d", i, len(row), dim)
		}
	}

	op.mats = append(op.mats, tensor.T2(o))
	op.actingOn = append(op.actingOn, slices.Clone(sites))
	return nil
}

func (op *LocalOperator) Hilbert() *hilbert.Space { return op.hi }

// NumOperators returns the number of local terms.
func (op *LocalOperator) NumOperators() int { return len(op.mats) }

// ActingOn returns the sites of term k.
func (op *LocalOperator) ActingOn(k int) []int { return slices.Clone(op.actingOn[k]) }

// FindConn returns the row of v of the sum of all terms.
// Diagonal contributions of the terms are merged into a single element.
func (op *LocalOperator) FindConn(v []float64) []Conn {
	var diag complex128
	conns := make([]Conn, 0)
	for k := range op.mats {
		for _, c := range op.FindConnTerm(k, v) {
			if IsDiagonal(v, c) {
				diag += c.Mel
				continue
			}
			conns = append(conns, c)
		}
	}
	if diag != 0 {
		conns = append([]Conn{{V: slices.Clone(v), Mel: diag}}, conns...)
	}
	return conns
}

// FindConnTerm returns the row of v of term k alone, including its diagonal element.
func (op *LocalOperator) FindConnTerm(k int, v []float64) []Conn {
	m, sites := op.mats[k], op.actingOn[k]

	row := op.localNumber(sites, v)
	dim := m.Shape()[1]
	conns := make([]Conn, 0)
	for col := range dim {
		mel := m.At(row, col)
		if mel == 0 {
			continue
		}
		w := slices.Clone(v)
		op.setLocal(sites, col, w)
		conns = append(conns, Conn{V: w, Mel: complex128(mel)})
	}
	return conns
}

// localNumber returns the index of the local configuration of v on sites.
func (op *LocalOperator) localNumber(sites []int, v []float64) int {
	number := 0
	for _, s := range sites {
		k, ok := op.hi.LocalIndex(s, v[s])
		if !ok {
			panic(fmt.Sprintf("site %d value %v not in %v", s, v[s], op.hi.SiteStates(s)))
		}
		number = number*op.hi.LocalSize(s) + k
	}
	return number
}

// setLocal writes the local configuration with index number onto sites of v.
func (op *LocalOperator) setLocal(sites []int, number int, v []float64) {
	for i := len(sites) - 1; i >= 0; i-- {
		s := sites[i]
		d := op.hi.LocalSize(s)
		v[s] = op.hi.LocalState(s, number%d)
		number /= d
	}
}
