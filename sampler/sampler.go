// Package sampler draws configurations from |ψ(v)|² for a machine ψ.
//
// MCMC samplers combine a Kernel, which proposes a move and reports the log ratio of the reverse
// and forward proposal probabilities, with the Metropolis-Hastings acceptance rule.
// Every chain owns its random number generator, so chains never share mutable state.
package sampler

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	mrand "math/rand/v2"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/qmc/hilbert"
	"github.com/fumin/qmc/logger"
	"github.com/fumin/qmc/machine"
)

// Sampler produces a sequence of configurations.
type Sampler interface {
	// Sweep advances the sampler to its next sample.
	Sweep()
	// Visible returns a copy of the current configuration.
	Visible() []float64
	// Acceptance returns the fraction of accepted proposals, 0 before any proposal.
	Acceptance() float64
	Hilbert() *hilbert.Space
}

// Kernel proposes a Metropolis-Hastings move.
//
// Propose writes a candidate derived from v into candidate and returns
// log q(candidate→v) - log q(v→candidate).
// If ok is false no move exists from v, and the proposal counts as a rejected self loop.
// Propose must not modify v.
type Kernel interface {
	Propose(rng *mrand.Rand, v, candidate []float64) (logRatio float64, ok bool)
}

// Options are options for samplers.
type Options struct {
	seed      uint64
	sweepSize int
	initial   []float64
	log       logger.Logger
	parallel  bool
}

// NewOptions returns the default sampler options.
// The seed is drawn from the operating system and can be read back with the sampler's Seed method.
func NewOptions() Options {
	opt := Options{}
	opt.seed = randomSeed()
	return opt
}

// Seed sets the seed of the random number generators.
func (opt Options) Seed(seed uint64) Options {
	opt.seed = seed
	return opt
}

// SweepSize sets the number of proposals per sweep, which defaults to the number of sites.
func (opt Options) SweepSize(n int) Options {
	opt.sweepSize = n
	return opt
}

// Initial sets the initial configuration, which defaults to a uniformly random one.
func (opt Options) Initial(v []float64) Options {
	opt.initial = slices.Clone(v)
	return opt
}

// Logger sets the logger for construction and diagnostic messages.
func (opt Options) Logger(log logger.Logger) Options {
	opt.log = log
	return opt
}

// Parallel sets whether the replicas of parallel tempering sweep concurrently.
func (opt Options) Parallel(p bool) Options {
	opt.parallel = p
	return opt
}

func getOptions(options []Options) Options {
	if len(options) > 0 {
		return options[0]
	}
	return NewOptions()
}

func randomSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("%+v", errors.Wrap(err, "")))
	}
	return binary.LittleEndian.Uint64(b[:])
}

// newRand returns the generator of stream i derived from seed.
func newRand(seed uint64, i int) *mrand.Rand {
	return mrand.New(mrand.NewPCG(seed, uint64(i)^0x9e3779b97f4a7c15))
}

// chain is a single Markov chain targeting |ψ|^(2β).
type chain struct {
	m    machine.Machine
	k    Kernel
	rng  *mrand.Rand
	beta float64

	v      []float64
	cand   []float64
	logVal complex128

	accepted int
	proposed int
}

func newChain(m machine.Machine, k Kernel, rng *mrand.Rand, beta float64, initial []float64) (*chain, error) {
	hi := m.Hilbert()
	c := &chain{m: m, k: k, rng: rng, beta: beta, v: make([]float64, hi.Size()), cand: make([]float64, hi.Size())}
	if initial != nil {
		if err := hi.Validate(initial); err != nil {
			return nil, errors.Wrap(err, "initial configuration")
		}
		copy(c.v, initial)
	} else {
		if !hi.IsFinite() {
			return nil, errors.Errorf("%v has no uniform random state, an initial configuration is required", hi)
		}
		hi.RandomState(rng, c.v)
	}
	c.logVal = m.LogVal(c.v)
	return c, nil
}

// step performs one Metropolis-Hastings proposal.
func (c *chain) step() {
	c.proposed++
	logRatio, ok := c.k.Propose(c.rng, c.v, c.cand)
	if !ok {
		return
	}
	candLogVal := c.m.LogVal(c.cand)
	logA := 2*c.beta*real(candLogVal-c.logVal) + logRatio
	if !accept(c.rng, logA) {
		return
	}
	c.v, c.cand = c.cand, c.v
	c.logVal = candLogVal
	c.accepted++
}

func (c *chain) sweep(n int) {
	for range n {
		c.step()
	}
}

func (c *chain) acceptance() float64 {
	if c.proposed == 0 {
		return 0
	}
	return float64(c.accepted) / float64(c.proposed)
}

// accept reports whether a move with log acceptance logA is taken.
// NaN rejects, +Inf accepts and -Inf rejects.
func accept(rng *mrand.Rand, logA float64) bool {
	if math.IsNaN(logA) {
		return false
	}
	if logA >= 0 {
		return true
	}
	return rng.Float64() < math.Exp(logA)
}
