// Package hilbert implements discrete configuration spaces.
//
// A configuration assigns to every site one value from that site's local states.
// Configurations are enumerated in mixed radix with site 0 as the most significant digit,
// so that for spin-1/2 the index of a configuration is its bit string read left to right.
package hilbert

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/pkg/errors"
)

// Space is an immutable discrete configuration space.
type Space struct {
	name string
	// local holds the local states of each site.
	// Homogeneous spaces share a single slice across sites.
	local [][]float64
	// index maps a local value to its position in local, one map per distinct local set.
	index []map[float64]int
	// homogeneous is true when all sites share the same local states.
	homogeneous bool
	// finite is false for spaces whose local states are unbounded.
	finite bool
	size   int

	numStates int
	// numStatesErr is non-nil if the number of states is not representable.
	numStatesErr error
	// radix[i] is the place value of site i in the enumeration.
	radix []int
}

// Spin returns the space of n spins with spin s.
// The local states are -2s, -2s+2, ..., 2s.
func Spin(s float64, n int) (*Space, error) {
	twoS := 2 * s
	if s <= 0 || twoS != math.Trunc(twoS) {
		return nil, errors.Errorf("spin must be a positive multiple of 1/2, got %f", s)
	}
	local := make([]float64, 0, int(twoS)+1)
	for m := -twoS; m <= twoS; m += 2 {
		local = append(local, m)
	}
	sp, err := newHomogeneous(fmt.Sprintf("Spin(s=%g)", s), local, n)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return sp, nil
}

// Qubit returns the space of n qubits with local states 0 and 1.
func Qubit(n int) (*Space, error) {
	sp, err := newHomogeneous("Qubit", []float64{0, 1}, n)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return sp, nil
}

// Boson returns the space of n bosonic modes with occupation 0, 1, ..., nMax.
// A negative nMax denotes unbounded occupation, in which case the space is not finite.
func Boson(nMax, n int) (*Space, error) {
	if nMax < 0 {
		if n <= 0 {
			return nil, errors.Errorf("%d", n)
		}
		sp := &Space{name: "Boson(unbounded)", size: n, homogeneous: true}
		sp.numStatesErr = errors.Errorf("unbounded boson space has no finite number of states")
		return sp, nil
	}
	local := make([]float64, 0, nMax+1)
	for i := range nMax + 1 {
		local = append(local, float64(i))
	}
	sp, err := newHomogeneous(fmt.Sprintf("Boson(n_max=%d)", nMax), local, n)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return sp, nil
}

// Custom returns a space of n sites sharing the given local states.
func Custom(local []float64, n int) (*Space, error) {
	sp, err := newHomogeneous("Custom", slices.Clone(local), n)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return sp, nil
}

// PerSite returns a space whose site i takes values in local[i].
func PerSite(local [][]float64) (*Space, error) {
	if len(local) == 0 {
		return nil, errors.Errorf("no sites")
	}
	sp := &Space{name: "PerSite", size: len(local), finite: true, homogeneous: true}
	for i, l := range local {
		if err := checkLocal(l); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("site %d", i))
		}
		sp.local = append(sp.local, slices.Clone(l))
		sp.index = append(sp.index, indexOf(l))
		if !slices.Equal(l, local[0]) {
			sp.homogeneous = false
		}
	}
	sp.enumerate()
	return sp, nil
}

func newHomogeneous(name string, local []float64, n int) (*Space, error) {
	if n <= 0 {
		return nil, errors.Errorf("number of sites must be positive, got %d", n)
	}
	if err := checkLocal(local); err != nil {
		return nil, errors.Wrap(err, "")
	}
	sp := &Space{name: name, size: n, finite: true, homogeneous: true}
	idx := indexOf(local)
	for range n {
		sp.local = append(sp.local, local)
		sp.index = append(sp.index, idx)
	}
	sp.enumerate()
	return sp, nil
}

func checkLocal(local []float64) error {
	if len(local) == 0 {
		return errors.Errorf("empty local states")
	}
	for i := 1; i < len(local); i++ {
		if !(local[i-1] < local[i]) {
			return errors.Errorf("local states must be strictly increasing %v", local)
		}
	}
	return nil
}

func indexOf(local []float64) map[float64]int {
	m := make(map[float64]int, len(local))
	for i, x := range local {
		m[x] = i
	}
	return m
}

// enumerate computes the place values of the mixed radix enumeration.
func (sp *Space) enumerate() {
	sp.radix = make([]int, sp.size)
	n := 1
	for i := sp.size - 1; i >= 0; i-- {
		sp.radix[i] = n
		d := len(sp.local[i])
		if n > math.MaxInt/d {
			sp.numStatesErr = errors.Errorf("%s with %d sites has too many states", sp.name, sp.size)
			return
		}
		n *= d
	}
	sp.numStates = n
}

func (sp *Space) String() string {
	return fmt.Sprintf("%s[%d]", sp.name, sp.size)
}

// Size returns the number of sites.
func (sp *Space) Size() int { return sp.size }

// IsFinite reports whether every site has finitely many local states.
func (sp *Space) IsFinite() bool { return sp.finite }

// LocalStates returns the local states common to all sites.
// It returns nil if the sites have different local states or the space is not finite.
func (sp *Space) LocalStates() []float64 {
	if !sp.finite || !sp.homogeneous {
		return nil
	}
	return slices.Clone(sp.local[0])
}

// SiteStates returns the local states of site i.
func (sp *Space) SiteStates(i int) []float64 {
	if !sp.finite {
		return nil
	}
	return slices.Clone(sp.local[i])
}

// LocalState returns the k-th local state of site i.
func (sp *Space) LocalState(i, k int) float64 {
	if !sp.finite {
		return float64(k)
	}
	return sp.local[i][k]
}

// LocalSize returns the number of local states of site i, or -1 if unbounded.
func (sp *Space) LocalSize(i int) int {
	if !sp.finite {
		return -1
	}
	return len(sp.local[i])
}

// LocalIndex returns the position of x among the local states of site i.
func (sp *Space) LocalIndex(i int, x float64) (int, bool) {
	if !sp.finite {
		if x >= 0 && x == math.Trunc(x) {
			return int(x), true
		}
		return -1, false
	}
	k, ok := sp.index[i][x]
	return k, ok
}

// NumStates returns the total number of configurations.
// It panics if the space is not finite, since that is a programming error of the caller.
func (sp *Space) NumStates() int {
	if sp.numStatesErr != nil {
		panic(fmt.Sprintf("%+v", sp.numStatesErr))
	}
	return sp.numStates
}

// CheckNumStates returns an error instead of panicking when NumStates is undefined.
func (sp *Space) CheckNumStates() (int, error) {
	if sp.numStatesErr != nil {
		return -1, errors.Wrap(sp.numStatesErr, "")
	}
	return sp.numStates, nil
}

// Validate returns an error if v is not a configuration of the space.
func (sp *Space) Validate(v []float64) error {
	if len(v) != sp.size {
		return errors.Errorf("configuration has %d sites, expected %d", len(v), sp.size)
	}
	for i, x := range v {
		if _, ok := sp.LocalIndex(i, x); !ok {
			return errors.Errorf("site %d value %v not in local states %v", i, x, sp.SiteStates(i))
		}
	}
	return nil
}

// StateToNumber returns the index of configuration v.
// It panics if v is not a configuration of the space.
func (sp *Space) StateToNumber(v []float64) int {
	i, err := sp.stateToNumber(v)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return i
}

func (sp *Space) stateToNumber(v []float64) (int, error) {
	if _, err := sp.CheckNumStates(); err != nil {
		return -1, errors.Wrap(err, "")
	}
	if len(v) != sp.size {
		return -1, errors.Errorf("%d %d", len(v), sp.size)
	}
	number := 0
	for i, x := range v {
		k, ok := sp.index[i][x]
		if !ok {
			return -1, errors.Errorf("site %d value %v not in local states %v", i, x, sp.local[i])
		}
		number += k * sp.radix[i]
	}
	return number, nil
}

// NumberToState writes the configuration with index number into v and returns it.
// If v is nil a new slice is allocated.
func (sp *Space) NumberToState(number int, v []float64) []float64 {
	if _, err := sp.CheckNumStates(); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	if number < 0 || number >= sp.numStates {
		panic(fmt.Sprintf("%d not in [0, %d)", number, sp.numStates))
	}
	if v == nil {
		v = make([]float64, sp.size)
	}
	for i := range sp.size {
		k := number / sp.radix[i]
		number -= k * sp.radix[i]
		v[i] = sp.local[i][k]
	}
	return v
}

// States iterates over all configurations in index order.
// The yielded slice is reused between iterations.
func (sp *Space) States() func(yield func(int, []float64) bool) {
	v := make([]float64, sp.size)
	return func(yield func(int, []float64) bool) {
		for i := range sp.NumStates() {
			sp.NumberToState(i, v)
			if !yield(i, v) {
				return
			}
		}
	}
}

// RandomState fills v with a uniformly random configuration.
func (sp *Space) RandomState(rng *rand.Rand, v []float64) {
	if !sp.finite {
		panic(fmt.Sprintf("%s is not finite", sp))
	}
	for i := range v {
		v[i] = sp.local[i][rng.IntN(len(sp.local[i]))]
	}
}
