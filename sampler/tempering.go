package sampler

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fumin/qmc/hilbert"
	"github.com/fumin/qmc/machine"
)

// ParallelTempering runs replicas of a chain at inverse temperatures betas[0] = 1 > betas[1] > ... >= 0,
// replica i targeting |ψ|^(2 betas[i]), and exchanges configurations between neighbouring replicas.
// Only replica 0 is visible.
//
// Visible, Acceptance and the other accessors may be called concurrently with Sweep.
type ParallelTempering struct {
	mu       sync.RWMutex
	replicas []*chain
	betas    []float64
	seed     uint64
	parallel bool

	sweepSize    int
	sweeps       int
	swapRng      *rand.Rand
	swapAccepted int
	swapProposed int
}

// DefaultBetas returns the schedule 1 - i/n for i = 0, ..., n-1.
func DefaultBetas(n int) []float64 {
	betas := make([]float64, n)
	for i := range n {
		betas[i] = 1 - float64(i)/float64(n)
	}
	return betas
}

// NewParallelTempering returns a parallel tempering sampler of m.
// Every replica gets its own kernel from newKernel.
func NewParallelTempering(m machine.Machine, newKernel func() Kernel, betas []float64, options ...Options) (*ParallelTempering, error) {
	if err := checkBetas(betas); err != nil {
		return nil, errors.Wrap(err, "")
	}
	opt := getOptions(options)
	sweepSize := opt.sweepSize
	if sweepSize == 0 {
		sweepSize = m.Hilbert().Size()
	}
	if sweepSize < 0 {
		return nil, errors.Errorf("negative sweep size %d", sweepSize)
	}

	pt := &ParallelTempering{
		betas:     slices.Clone(betas),
		seed:      opt.seed,
		parallel:  opt.parallel,
		sweepSize: sweepSize,
		swapRng:   newRand(opt.seed, len(betas)),
	}
	for i, beta := range betas {
		c, err := newChain(m, newKernel(), newRand(opt.seed, i), beta, opt.initial)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("replica %d", i))
		}
		pt.replicas = append(pt.replicas, c)
	}
	if opt.log != nil {
		opt.log.Debugf("parallel tempering on %v, betas %v, seed %d, parallel %v", m.Hilbert(), betas, opt.seed, opt.parallel)
	}
	return pt, nil
}

func checkBetas(betas []float64) error {
	if len(betas) < 2 {
		return errors.Errorf("at least 2 replicas are required, got %d", len(betas))
	}
	if betas[0] != 1 {
		return errors.Errorf("first beta must be 1, got %f", betas[0])
	}
	for i := 1; i < len(betas); i++ {
		if !(betas[i] < betas[i-1]) {
			return errors.Errorf("betas must be strictly decreasing %v", betas)
		}
	}
	if last := betas[len(betas)-1]; !(last >= 0) {
		return errors.Errorf("betas must be non-negative %v", betas)
	}
	return nil
}

// Sweep sweeps every replica and then proposes exchanges between neighbouring replicas.
// Pairs (i, i+1) with i of the same parity as the number of previous sweeps are tried.
func (pt *ParallelTempering) Sweep() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.parallel {
		var g errgroup.Group
		for _, c := range pt.replicas {
			g.Go(func() error {
				c.sweep(pt.sweepSize)
				return nil
			})
		}
		// Replicas never fail.
		_ = g.Wait()
	} else {
		for _, c := range pt.replicas {
			c.sweep(pt.sweepSize)
		}
	}

	for i := pt.sweeps % 2; i+1 < len(pt.replicas); i += 2 {
		pt.swap(i)
	}
	pt.sweeps++
}

// swap proposes to exchange the configurations of replicas i and i+1.
func (pt *ParallelTempering) swap(i int) {
	a, b := pt.replicas[i], pt.replicas[i+1]
	pt.swapProposed++
	logA := (a.beta - b.beta) * 2 * real(b.logVal-a.logVal)
	if !accept(pt.swapRng, logA) {
		return
	}
	a.v, b.v = b.v, a.v
	a.logVal, b.logVal = b.logVal, a.logVal
	pt.swapAccepted++
}

func (pt *ParallelTempering) Visible() []float64 {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return slices.Clone(pt.replicas[0].v)
}

// Acceptance returns the move acceptance of the visible replica.
func (pt *ParallelTempering) Acceptance() float64 {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.replicas[0].acceptance()
}

// ReplicaAcceptance returns the move acceptance of replica i.
func (pt *ParallelTempering) ReplicaAcceptance(i int) float64 {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.replicas[i].acceptance()
}

// SwapAcceptance returns the fraction of accepted replica exchanges.
func (pt *ParallelTempering) SwapAcceptance() float64 {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	if pt.swapProposed == 0 {
		return 0
	}
	return float64(pt.swapAccepted) / float64(pt.swapProposed)
}

func (pt *ParallelTempering) Hilbert() *hilbert.Space { return pt.replicas[0].m.Hilbert() }

// Betas returns the inverse temperatures of the replicas.
func (pt *ParallelTempering) Betas() []float64 { return slices.Clone(pt.betas) }

// NumReplicas returns the number of replicas.
func (pt *ParallelTempering) NumReplicas() int { return len(pt.replicas) }

// Seed returns the seed of the random number generators.
func (pt *ParallelTempering) Seed() uint64 { return pt.seed }

// Reset clears the acceptance statistics of all replicas and of the exchanges.
func (pt *ParallelTempering) Reset() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	for _, c := range pt.replicas {
		c.accepted, c.proposed = 0, 0
	}
	pt.swapAccepted, pt.swapProposed = 0, 0
}
