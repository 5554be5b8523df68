package machine

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/qmc/hilbert"
)

// RBMSpinSymm is an RBMSpin whose parameters are invariant under a group of site permutations.
// Each of the alpha filters is applied to every permuted configuration, so the machine has
// alpha*len(perms) hidden units but only alpha*(Size()+1)+1 free parameters.
type RBMSpinSymm struct {
	hi    *hilbert.Space
	perms [][]int
	a     complex128
	b     []complex128
	// w[f, i] is the weight of filter f on site i.
	w *mat.CDense
}

// Translations returns the cyclic translations of a periodic chain of n sites.
func Translations(n int) [][]int {
	perms := make([][]int, 0, n)
	for t := range n {
		p := make([]int, n)
		for i := range n {
			p[i] = (i + t) % n
		}
		perms = append(perms, p)
	}
	return perms
}

// NewRBMSpinSymm returns a symmetric machine.
// If perms is nil, the translations of a periodic chain are used.
func NewRBMSpinSymm(hi *hilbert.Space, alpha int, perms [][]int) (*RBMSpinSymm, error) {
	if alpha <= 0 {
		return nil, errors.Errorf("alpha must be positive, got %d", alpha)
	}
	n := hi.Size()
	if perms == nil {
		perms = Translations(n)
	}
	for k, p := range perms {
		if len(p) != n {
			return nil, errors.Errorf("permutation %d has length %d, expected %d", k, len(p), n)
		}
		seen := make([]bool, n)
		for _, i := range p {
			if i < 0 || i >= n || seen[i] {
				return nil, errors.Errorf("permutation %d is invalid %v", k, p)
			}
			seen[i] = true
		}
	}
	m := &RBMSpinSymm{
		hi:    hi,
		perms: perms,
		b:     make([]complex128, alpha),
		w:     mat.NewCDense(alpha, n, nil),
	}
	return m, nil
}

func (m *RBMSpinSymm) InitRandomParameters(seed uint64, sigma float64) {
	rng := newRand(seed)
	a := []complex128{0}
	initGaussian(rng, sigma, a, m.b, m.w)
	m.a = a[0]
}

func (m *RBMSpinSymm) Hilbert() *hilbert.Space { return m.hi }

func (m *RBMSpinSymm) LogVal(v []float64) complex128 {
	if len(v) != m.hi.Size() {
		panic(fmt.Sprintf("%d %d", len(v), m.hi.Size()))
	}
	var sum float64
	for _, vi := range v {
		sum += vi
	}
	lv := m.a * complex(sum, 0)
	for f, bf := range m.b {
		for _, p := range m.perms {
			theta := bf
			for i, vi := range v {
				theta += m.w.At(f, p[i]) * complex(vi, 0)
			}
			lv += lnCosh(theta)
		}
	}
	return lv
}
