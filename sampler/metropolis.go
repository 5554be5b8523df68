package sampler

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/qmc/hilbert"
	"github.com/fumin/qmc/machine"
)

// Metropolis is a Metropolis-Hastings sampler of |ψ(v)|².
// It is not safe for concurrent use.
type Metropolis struct {
	chain     *chain
	seed      uint64
	sweepSize int
}

// NewMetropolis returns a sampler of m with moves proposed by k.
func NewMetropolis(m machine.Machine, k Kernel, options ...Options) (*Metropolis, error) {
	opt := getOptions(options)
	sweepSize := opt.sweepSize
	if sweepSize == 0 {
		sweepSize = m.Hilbert().Size()
	}
	if sweepSize < 0 {
		return nil, errors.Errorf("negative sweep size %d", sweepSize)
	}

	c, err := newChain(m, k, newRand(opt.seed, 0), 1, opt.initial)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	s := &Metropolis{chain: c, seed: opt.seed, sweepSize: sweepSize}
	if opt.log != nil {
		opt.log.Debugf("metropolis %T on %v, seed %d, sweep size %d", k, m.Hilbert(), opt.seed, sweepSize)
	}
	return s, nil
}

// Sweep performs SweepSize proposals.
func (s *Metropolis) Sweep() { s.chain.sweep(s.sweepSize) }

func (s *Metropolis) Visible() []float64 { return slices.Clone(s.chain.v) }

func (s *Metropolis) Acceptance() float64 { return s.chain.acceptance() }

func (s *Metropolis) Hilbert() *hilbert.Space { return s.chain.m.Hilbert() }

// Machine returns the sampled machine.
func (s *Metropolis) Machine() machine.Machine { return s.chain.m }

// Seed returns the seed of the random number generator.
func (s *Metropolis) Seed() uint64 { return s.seed }

// SweepSize returns the number of proposals per sweep.
func (s *Metropolis) SweepSize() int { return s.sweepSize }

// Reset clears the acceptance statistics and keeps the current configuration.
func (s *Metropolis) Reset() {
	s.chain.accepted = 0
	s.chain.proposed = 0
}
