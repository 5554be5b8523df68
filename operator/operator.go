// Package operator implements operators through their nonzero matrix elements.
//
// The row of an operator at configuration v is returned as the list of configurations v' with
// nonzero ⟨v|O|v'⟩, which is all the samplers and exact diagonalisation need.
package operator

import (
	"slices"

	"github.com/fumin/qmc/hilbert"
)

// Conn is a nonzero matrix element ⟨v|O|V⟩ = Mel.
type Conn struct {
	V   []float64
	Mel complex128
}

// Operator is an operator acting on a discrete configuration space.
type Operator interface {
	Hilbert() *hilbert.Space
	// FindConn returns the nonzero elements of the row of v.
	// The diagonal element, if nonzero, has V equal to v.
	FindConn(v []float64) []Conn
}

// ChainEdges returns the nearest neighbour bonds of a chain of n sites.
// If periodic is true the last site is bonded to the first.
func ChainEdges(n int, periodic bool) [][2]int {
	edges := make([][2]int, 0, n)
	for i := range n - 1 {
		edges = append(edges, [2]int{i, i + 1})
	}
	if periodic && n > 2 {
		edges = append(edges, [2]int{n - 1, 0})
	}
	return edges
}

// IsDiagonal reports whether c is the diagonal element of the row of v.
func IsDiagonal(v []float64, c Conn) bool {
	return slices.Equal(v, c.V)
}
