package operator

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/qmc/hilbert"
)

// Ising is the transverse field Ising hamiltonian
//
//	H = -J Σ_<ij> σ^z_i σ^z_j - h Σ_i σ^x_i
//
// on a spin-1/2 space whose local states are -1 and 1.
type Ising struct {
	hi    *hilbert.Space
	edges [][2]int
	h     float64
	j     float64
}

// NewIsing returns the Ising hamiltonian on the bonds edges.
func NewIsing(hi *hilbert.Space, edges [][2]int, h, j float64) (*Ising, error) {
	if !slices.Equal(hi.LocalStates(), []float64{-1, 1}) {
		return nil, errors.Errorf("%v is not a spin-1/2 space", hi)
	}
	for _, e := range edges {
		if e[0] < 0 || e[0] >= hi.Size() || e[1] < 0 || e[1] >= hi.Size() || e[0] == e[1] {
			return nil, errors.Errorf("invalid bond %v", e)
		}
	}
	return &Ising{hi: hi, edges: slices.Clone(edges), h: h, j: j}, nil
}

func (op *Ising) Hilbert() *hilbert.Space { return op.hi }

func (op *Ising) FindConn(v []float64) []Conn {
	conns := make([]Conn, 0, len(v)+1)

	var diag float64
	for _, e := range op.edges {
		diag -= op.j * v[e[0]] * v[e[1]]
	}
	if diag != 0 {
		conns = append(conns, Conn{V: slices.Clone(v), Mel: complex(diag, 0)})
	}

	if op.h == 0 {
		return conns
	}
	for i := range v {
		flipped := slices.Clone(v)
		flipped[i] = -flipped[i]
		conns = append(conns, Conn{V: flipped, Mel: complex(-op.h, 0)})
	}
	return conns
}
