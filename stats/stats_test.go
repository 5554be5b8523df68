package stats

import (
	"flag"
	"fmt"
	"log"
	"math"
	"testing"

	"github.com/fumin/qmc/hilbert"
	"github.com/fumin/qmc/machine"
	"github.com/fumin/qmc/operator"
	"github.com/fumin/qmc/sampler"
)

func TestL1(t *testing.T) {
	t.Parallel()
	tests := []struct {
		h1 []float64
		h2 []float64
		n  int
		z  float64
	}{
		{h1: []float64{5, 5}, h2: []float64{5, 5}, n: 10, z: math.Sqrt(20) / 10},
		{h1: []float64{10, 0}, h2: []float64{0, 10}, n: 10, z: math.Sqrt(180) / 10},
		{h1: []float64{3, 1, 0}, h2: []float64{2, 1, 1}, n: 4, z: math.Sqrt(6) / 4},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v", test.h1, test.h2), func(t *testing.T) {
			t.Parallel()
			if z := L1(test.h1, test.h2, test.n); math.Abs(z-test.z) > 1e-12 {
				t.Fatalf("%f, expected %f", z, test.z)
			}
		})
	}
}

func TestL1LengthMismatch(t *testing.T) {
	t.Parallel()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic")
		}
	}()
	L1([]float64{1, 2}, []float64{3}, 3)
}

func TestEquivalent(t *testing.T) {
	t.Parallel()
	n := 10000
	if tol := Tolerance(n); math.Abs(tol-0.01) > 1e-12 {
		t.Fatalf("%f", tol)
	}
	if NumSamples(64) != 10000 || NumSamples(2048) != 20480 {
		t.Fatalf("%d %d", NumSamples(64), NumSamples(2048))
	}

	same := []float64{2500, 2500, 2500, 2500}
	if z, ok := Equivalent(same, same, n); !ok {
		t.Fatalf("%f", z)
	}
	different := []float64{5000, 0, 2500, 2500}
	if z, ok := Equivalent(same, different, n); ok {
		t.Fatalf("%f", z)
	}
}

func mustSpace(hi *hilbert.Space, err error) *hilbert.Space {
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return hi
}

func localKernel(hi *hilbert.Space) func() sampler.Kernel {
	return func() sampler.Kernel {
		k, err := sampler.NewLocalKernel(hi)
		if err != nil {
			panic(fmt.Sprintf("%+v", err))
		}
		return k
	}
}

func customKernel(op *operator.LocalOperator) func() sampler.Kernel {
	return func() sampler.Kernel {
		k, err := sampler.NewCustomKernel(op)
		if err != nil {
			panic(fmt.Sprintf("%+v", err))
		}
		return k
	}
}

// moves returns the operator of single flips and, if exchange is true, nearest neighbour exchanges
// on a periodic chain.
func moves(hi *hilbert.Space, exchange bool) *operator.LocalOperator {
	var ops [][][]complex64
	var actingOn [][]int
	for i := range hi.Size() {
		ops = append(ops, operator.PauliX)
		actingOn = append(actingOn, []int{i})
	}
	if exchange {
		for _, e := range operator.ChainEdges(hi.Size(), true) {
			ops = append(ops, operator.Exchange)
			actingOn = append(actingOn, []int{e[0], e[1]})
		}
	}
	op, err := operator.NewLocalOperator(hi, ops, actingOn)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return op
}

type equivalenceTest struct {
	name string
	m    machine.Machine
	new  func(m machine.Machine, opt sampler.Options) (sampler.Sampler, error)
}

func metropolis(newKernel func() sampler.Kernel) func(machine.Machine, sampler.Options) (sampler.Sampler, error) {
	return func(m machine.Machine, opt sampler.Options) (sampler.Sampler, error) {
		return sampler.NewMetropolis(m, newKernel(), opt)
	}
}

func tempering(newKernel func() sampler.Kernel, replicas int) func(machine.Machine, sampler.Options) (sampler.Sampler, error) {
	return func(m machine.Machine, opt sampler.Options) (sampler.Sampler, error) {
		return sampler.NewParallelTempering(m, newKernel, sampler.DefaultBetas(replicas), opt)
	}
}

func TestSamplersMatchExact(t *testing.T) {
	t.Parallel()
	spins := mustSpace(hilbert.Spin(0.5, 6))
	spinRBM, err := machine.NewRBMSpin(spins, 1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	spinRBM.InitRandomParameters(1234, 0.2)
	symm, err := machine.NewRBMSpinSymm(spins, 1, nil)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	symm.InitRandomParameters(1234, 0.2)
	ising, err := operator.NewIsing(spins, operator.ChainEdges(spins.Size(), true), 1, 1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	hamiltonian := func() sampler.Kernel { return sampler.NewHamiltonianKernel(ising) }

	bosons := mustSpace(hilbert.Boson(4, 6))
	bosonRBM, err := machine.NewRBMSpin(bosons, 1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	bosonRBM.InitRandomParameters(1234, 0.2)
	bosonMulti, err := machine.NewRBMMultiVal(bosons, 1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	bosonMulti.InitRandomParameters(1234, 0.2)

	tests := []equivalenceTest{
		{name: "local", m: spinRBM, new: metropolis(localKernel(spins))},
		{name: "local pt", m: spinRBM, new: tempering(localKernel(spins), 4)},
		{name: "hamiltonian", m: spinRBM, new: metropolis(hamiltonian)},
		{name: "hamiltonian pt", m: spinRBM, new: tempering(hamiltonian, 4)},
		{name: "custom", m: spinRBM, new: metropolis(customKernel(moves(spins, false)))},
		{name: "custom pt", m: spinRBM, new: tempering(customKernel(moves(spins, false)), 4)},
		{name: "custom exchange", m: spinRBM, new: metropolis(customKernel(moves(spins, true)))},
		{name: "symmetric local", m: symm, new: metropolis(localKernel(spins))},
		{name: "boson local", m: bosonRBM, new: metropolis(localKernel(bosons))},
		{name: "boson local pt", m: bosonRBM, new: tempering(localKernel(bosons), 4)},
		{name: "boson multival local", m: bosonMulti, new: metropolis(localKernel(bosons))},
	}
	for i, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			n := NumSamples(test.m.Hilbert().NumStates())

			exact, err := sampler.NewExact(test.m, sampler.NewOptions().Seed(uint64(1000+i)))
			if err != nil {
				t.Fatalf("%+v", err)
			}
			s, err := test.new(test.m, sampler.NewOptions().Seed(uint64(i)))
			if err != nil {
				t.Fatalf("%+v", err)
			}
			// Thermalize.
			for range 100 {
				s.Sweep()
			}

			z, ok := Equivalent(Histogram(exact, n), Histogram(s, n), n)
			if !ok {
				t.Fatalf("z %f, tolerance %f", z, Tolerance(n))
			}
			if a := s.Acceptance(); a <= 0 || a > 1 {
				t.Fatalf("acceptance %f", a)
			}
		})
	}
}

func TestDetectsWrongDistribution(t *testing.T) {
	t.Parallel()
	hi := mustSpace(hilbert.Spin(0.5, 4))
	amps := make([]complex128, hi.NumStates())
	for i := range amps {
		amps[i] = complex(float64(i+1), 0)
	}
	skewed, err := machine.NewTable(hi, amps)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for i := range amps {
		amps[i] = 1
	}
	flat, err := machine.NewTable(hi, amps)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	n := NumSamples(hi.NumStates())
	s1, err := sampler.NewExact(skewed, sampler.NewOptions().Seed(1))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	s2, err := sampler.NewExact(flat, sampler.NewOptions().Seed(2))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if z, ok := Equivalent(Histogram(s1, n), Histogram(s2, n), n); ok {
		t.Fatalf("z %f, tolerance %f", z, Tolerance(n))
	}
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}
