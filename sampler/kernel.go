package sampler

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/qmc/hilbert"
	"github.com/fumin/qmc/operator"
)

// LocalKernel changes the value of a single site.
// The new value is drawn uniformly from the full local states of the site, the current value included.
type LocalKernel struct {
	hi *hilbert.Space
}

// NewLocalKernel returns a local kernel on hi.
func NewLocalKernel(hi *hilbert.Space) (*LocalKernel, error) {
	if !hi.IsFinite() {
		return nil, errors.Errorf("%v has unbounded local states", hi)
	}
	return &LocalKernel{hi: hi}, nil
}

// Propose sets one random site of candidate to a uniformly drawn local state; the log ratio is 0.
func (k *LocalKernel) Propose(rng *rand.Rand, v, candidate []float64) (float64, bool) {
	copy(candidate, v)
	site := rng.IntN(len(v))
	candidate[site] = k.hi.LocalState(site, rng.IntN(k.hi.LocalSize(site)))
	return 0, true
}

// HamiltonianKernel moves along the off-diagonal connections of an operator,
// choosing a connection with probability proportional to the magnitude of its matrix element.
type HamiltonianKernel struct {
	op operator.Operator
}

// NewHamiltonianKernel returns a kernel guided by op.
func NewHamiltonianKernel(op operator.Operator) *HamiltonianKernel {
	return &HamiltonianKernel{op: op}
}

// Propose moves along an off-diagonal connection of v, reporting no move if v has none.
func (k *HamiltonianKernel) Propose(rng *rand.Rand, v, candidate []float64) (float64, bool) {
	forward, fromV := offDiagonal(v, k.op.FindConn(v))
	if len(forward) == 0 {
		return 0, false
	}
	i := pick(rng, forward, fromV)
	copy(candidate, forward[i].V)

	backward, fromCand := offDiagonal(candidate, k.op.FindConn(candidate))
	return proposalLogRatio(v, candidate, forward, fromV, backward, fromCand), true
}

// offDiagonal returns the connections of v that lead elsewhere, together with their total magnitude.
func offDiagonal(v []float64, conns []operator.Conn) ([]operator.Conn, float64) {
	off := conns[:0]
	var w float64
	for _, c := range conns {
		if operator.IsDiagonal(v, c) || c.Mel == 0 {
			continue
		}
		off = append(off, c)
		w += cmplx.Abs(c.Mel)
	}
	return off, w
}

// CustomKernel proposes moves generated by a set of local move operators.
// A term is chosen uniformly, then an element of its row at the current configuration,
// the diagonal included, with probability proportional to its magnitude.
type CustomKernel struct {
	op *operator.LocalOperator
}

// NewCustomKernel returns a kernel whose moves are the terms of op.
func NewCustomKernel(op *operator.LocalOperator) (*CustomKernel, error) {
	if op.NumOperators() == 0 {
		return nil, errors.Errorf("no move operators")
	}
	return &CustomKernel{op: op}, nil
}

// Propose applies a uniformly chosen move term to v, reporting no move if its row at v is empty.
func (k *CustomKernel) Propose(rng *rand.Rand, v, candidate []float64) (float64, bool) {
	term := rng.IntN(k.op.NumOperators())
	forward, fromV := weighted(k.op.FindConnTerm(term, v))
	if len(forward) == 0 {
		return 0, false
	}
	i := pick(rng, forward, fromV)
	copy(candidate, forward[i].V)

	backward, fromCand := weighted(k.op.FindConnTerm(term, candidate))
	return proposalLogRatio(v, candidate, forward, fromV, backward, fromCand), true
}

func weighted(conns []operator.Conn) ([]operator.Conn, float64) {
	nonzero := conns[:0]
	var w float64
	for _, c := range conns {
		if c.Mel == 0 {
			continue
		}
		nonzero = append(nonzero, c)
		w += cmplx.Abs(c.Mel)
	}
	return nonzero, w
}

// pick returns the index of a connection drawn with probability |Mel| / total.
func pick(rng *rand.Rand, conns []operator.Conn, total float64) int {
	u := rng.Float64() * total
	for i, c := range conns {
		u -= cmplx.Abs(c.Mel)
		if u < 0 {
			return i
		}
	}
	return len(conns) - 1
}

// proposalLogRatio returns log(|M_yx|/W_y) - log(|M_xy|/W_x) for the move x→y,
// where W is the total weight of the connections of a configuration.
// Connections to the same configuration add up.
// It returns -Inf if y has no connection back to x.
func proposalLogRatio(x, y []float64, forward []operator.Conn, fromX float64, backward []operator.Conn, fromY float64) float64 {
	back := weightTo(backward, x)
	if back == 0 {
		return math.Inf(-1)
	}
	return math.Log(back/fromY) - math.Log(weightTo(forward, y)/fromX)
}

func weightTo(conns []operator.Conn, target []float64) float64 {
	var w float64
	for _, c := range conns {
		if slices.Equal(c.V, target) {
			w += cmplx.Abs(c.Mel)
		}
	}
	return w
}
