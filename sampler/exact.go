package sampler

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/qmc/hilbert"
	"github.com/fumin/qmc/machine"
)

// MaxExactStates is the largest space Exact enumerates.
const MaxExactStates = 1 << 22

// Exact draws independent samples from |ψ|² by enumerating the whole space.
type Exact struct {
	m     machine.Machine
	rng   *rand.Rand
	seed  uint64
	probs []float64
	table *aliasTable
	v     []float64
}

// NewExact returns an exact sampler of m.
// It fails if the space of m is not finite or has more than MaxExactStates states.
func NewExact(m machine.Machine, options ...Options) (*Exact, error) {
	opt := getOptions(options)
	hi := m.Hilbert()
	n, err := hi.CheckNumStates()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if n > MaxExactStates {
		return nil, errors.Errorf("%v has %d states, more than %d", hi, n, MaxExactStates)
	}

	probs, err := probabilities(m)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	s := &Exact{
		m:     m,
		rng:   newRand(opt.seed, 0),
		seed:  opt.seed,
		probs: probs,
		table: newAliasTable(probs),
	}
	s.v = hi.NumberToState(0, nil)
	if opt.log != nil {
		opt.log.Debugf("exact sampler on %v, %d states, seed %d", hi, n, opt.seed)
	}
	return s, nil
}

// probabilities returns |ψ(v)|² normalized over the space of m.
func probabilities(m machine.Machine) ([]float64, error) {
	hi := m.Hilbert()
	logP := make([]float64, hi.NumStates())
	maxLogP := math.Inf(-1)
	for i, v := range hi.States() {
		logP[i] = 2 * real(m.LogVal(v))
		if math.IsNaN(logP[i]) || math.IsInf(logP[i], 1) {
			return nil, errors.Errorf("invalid log amplitude %v at %v", m.LogVal(v), v)
		}
		maxLogP = max(maxLogP, logP[i])
	}
	if math.IsInf(maxLogP, -1) {
		return nil, errors.Errorf("wavefunction vanishes everywhere")
	}

	probs := make([]float64, len(logP))
	var total float64
	for i, lp := range logP {
		probs[i] = math.Exp(lp - maxLogP)
		total += probs[i]
	}
	for i := range probs {
		probs[i] /= total
	}
	return probs, nil
}

// Sweep draws a new independent configuration.
func (s *Exact) Sweep() {
	s.m.Hilbert().NumberToState(s.table.pick(s.rng), s.v)
}

func (s *Exact) Visible() []float64 { return slices.Clone(s.v) }

// Acceptance is always 1, every draw is a new sample.
func (s *Exact) Acceptance() float64 { return 1 }

func (s *Exact) Hilbert() *hilbert.Space { return s.m.Hilbert() }

// Probabilities returns the probability of every configuration in index order.
func (s *Exact) Probabilities() []float64 { return slices.Clone(s.probs) }

// Seed returns the seed of the random number generator.
func (s *Exact) Seed() uint64 { return s.seed }

// aliasTable samples a discrete distribution in constant time with Vose's alias method.
type aliasTable struct {
	prob    []float64
	aliases []int
}

// newAliasTable builds the table of the normalized distribution probs.
func newAliasTable(probs []float64) *aliasTable {
	n := len(probs)
	t := &aliasTable{prob: make([]float64, n), aliases: make([]int, n)}

	small := make([]int, 0)
	large := make([]int, 0)
	for i, p := range probs {
		t.prob[i] = p * float64(n)
		t.aliases[i] = i
		if t.prob[i] < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		t.aliases[s] = l
		t.prob[l] = t.prob[l] + t.prob[s] - 1
		if t.prob[l] < 1 {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}
	// Leftovers are 1 up to rounding.
	for _, i := range large {
		t.prob[i] = 1
	}
	for _, i := range small {
		t.prob[i] = 1
	}
	return t
}

func (t *aliasTable) pick(rng *rand.Rand) int {
	idx := rng.IntN(len(t.prob))
	if rng.Float64() < t.prob[idx] {
		return idx
	}
	return t.aliases[idx]
}
