// Package config describes a sampling run in YAML and builds its components.
package config

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fumin/qmc/exactdiag"
	"github.com/fumin/qmc/hilbert"
	"github.com/fumin/qmc/logger"
	"github.com/fumin/qmc/machine"
	"github.com/fumin/qmc/operator"
	"github.com/fumin/qmc/sampler"
)

// Hilbert space kinds.
const (
	HilbertSpin  = "spin"
	HilbertQubit = "qubit"
	HilbertBoson = "boson"
)

// Machine kinds.
const (
	MachineRBM         = "rbm"
	MachineRBMMultiVal = "rbm_multival"
	MachineRBMSymm     = "rbm_symm"
	MachineMPS         = "mps"
	MachineGroundState = "ground_state"
)

// Kernel kinds.
const (
	KernelLocal       = "local"
	KernelHamiltonian = "hamiltonian"
	KernelCustom      = "custom"
)

// Move operators of custom kernels.
const (
	MoveFlip     = "flip"
	MoveExchange = "exchange"
)

// Config is a sampling run: a machine on a space and the samplers compared against its exact distribution.
type Config struct {
	Seed    uint64 `yaml:"seed"`
	Samples int    `yaml:"samples"`
	// Thermalize is the number of sweeps discarded before sampling.
	Thermalize int       `yaml:"thermalize"`
	LogLevel   string    `yaml:"log_level"`
	DB         string    `yaml:"db"`
	Parallel   bool      `yaml:"parallel"`
	Hilbert    Hilbert   `yaml:"hilbert"`
	Machine    Machine   `yaml:"machine"`
	Samplers   []Sampler `yaml:"samplers"`
}

// Hilbert is a configuration space.
type Hilbert struct {
	Kind string  `yaml:"kind"`
	Size int     `yaml:"size"`
	S    float64 `yaml:"s"`
	NMax int     `yaml:"n_max"`
}

// Machine is a wavefunction.
// Sigma and Seed initialize random parameters; H is the transverse field of a ground state.
type Machine struct {
	Kind    string  `yaml:"kind"`
	Alpha   int     `yaml:"alpha"`
	Sigma   float64 `yaml:"sigma"`
	Seed    uint64  `yaml:"seed"`
	BondDim int     `yaml:"bond_dim"`
	H       float64 `yaml:"h"`
}

// Sampler is an MCMC sampler.
// Replicas greater than 1 selects parallel tempering with the default inverse temperatures.
type Sampler struct {
	Name     string   `yaml:"name"`
	Kernel   string   `yaml:"kernel"`
	Replicas int      `yaml:"replicas"`
	H        float64  `yaml:"h"`
	Moves    []string `yaml:"moves"`
}

// Default returns a six site spin-1/2 chain sampled by every kind of sampler.
func Default() Config {
	return Config{
		Seed:       1,
		Thermalize: 100,
		LogLevel:   "INFO",
		DB:         "qmc.db",
		Hilbert:    Hilbert{Kind: HilbertSpin, Size: 6, S: 0.5},
		Machine:    Machine{Kind: MachineRBM, Alpha: 1, Sigma: 0.2, Seed: 1234},
		Samplers: []Sampler{
			{Name: "local", Kernel: KernelLocal},
			{Name: "local pt", Kernel: KernelLocal, Replicas: 4},
			{Name: "hamiltonian", Kernel: KernelHamiltonian, H: 1},
			{Name: "hamiltonian pt", Kernel: KernelHamiltonian, H: 1, Replicas: 4},
			{Name: "custom", Kernel: KernelCustom, Moves: []string{MoveFlip}},
			{Name: "custom pt", Kernel: KernelCustom, Moves: []string{MoveFlip}, Replicas: 4},
			{Name: "custom exchange", Kernel: KernelCustom, Moves: []string{MoveFlip, MoveExchange}},
		},
	}
}

// Parse decodes YAML into a config, starting from Default for fields that are absent.
// Unknown fields are errors.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	cfg.Samplers = nil
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	if cfg.Samplers == nil {
		cfg.Samplers = Default().Samplers
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	return cfg, nil
}

// Load reads the config at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (cfg Config) Validate() error {
	if cfg.Samples < 0 {
		return errors.Errorf("negative samples %d", cfg.Samples)
	}
	if cfg.Thermalize < 0 {
		return errors.Errorf("negative thermalize %d", cfg.Thermalize)
	}
	if cfg.Hilbert.Size <= 0 {
		return errors.Errorf("hilbert size must be positive, got %d", cfg.Hilbert.Size)
	}
	switch cfg.Hilbert.Kind {
	case HilbertSpin, HilbertQubit:
	case HilbertBoson:
		if cfg.Hilbert.NMax <= 0 {
			return errors.Errorf("boson n_max must be positive, got %d", cfg.Hilbert.NMax)
		}
	default:
		return errors.Errorf("unknown hilbert kind %q", cfg.Hilbert.Kind)
	}

	switch cfg.Machine.Kind {
	case MachineRBM, MachineRBMMultiVal, MachineRBMSymm:
		if cfg.Machine.Alpha <= 0 {
			return errors.Errorf("machine alpha must be positive, got %d", cfg.Machine.Alpha)
		}
	case MachineMPS:
		if cfg.Machine.BondDim <= 0 {
			return errors.Errorf("machine bond_dim must be positive, got %d", cfg.Machine.BondDim)
		}
	case MachineGroundState:
	default:
		return errors.Errorf("unknown machine kind %q", cfg.Machine.Kind)
	}

	if len(cfg.Samplers) == 0 {
		return errors.Errorf("no samplers")
	}
	names := make([]string, 0, len(cfg.Samplers))
	for i, s := range cfg.Samplers {
		if err := s.validate(); err != nil {
			return errors.Wrap(err, fmt.Sprintf("sampler %d", i))
		}
		if slices.Contains(names, s.Name) {
			return errors.Errorf("duplicate sampler name %q", s.Name)
		}
		names = append(names, s.Name)
	}
	return nil
}

func (s Sampler) validate() error {
	if s.Name == "" {
		return errors.Errorf("empty name")
	}
	if s.Replicas < 0 || s.Replicas == 1 {
		return errors.Errorf("replicas must be 0 or at least 2, got %d", s.Replicas)
	}
	switch s.Kernel {
	case KernelLocal, KernelHamiltonian:
	case KernelCustom:
		if len(s.Moves) == 0 {
			return errors.Errorf("custom kernel without moves")
		}
		for _, m := range s.Moves {
			if m != MoveFlip && m != MoveExchange {
				return errors.Errorf("unknown move %q", m)
			}
		}
	default:
		return errors.Errorf("unknown kernel %q", s.Kernel)
	}
	return nil
}

// Build returns the configured space.
func (h Hilbert) Build() (*hilbert.Space, error) {
	var hi *hilbert.Space
	var err error
	switch h.Kind {
	case HilbertSpin:
		s := h.S
		if s == 0 {
			s = 0.5
		}
		hi, err = hilbert.Spin(s, h.Size)
	case HilbertQubit:
		hi, err = hilbert.Qubit(h.Size)
	case HilbertBoson:
		hi, err = hilbert.Boson(h.NMax, h.Size)
	default:
		err = errors.Errorf("unknown hilbert kind %q", h.Kind)
	}
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return hi, nil
}

// Build returns the configured machine on hi.
func (m Machine) Build(hi *hilbert.Space) (machine.Machine, error) {
	switch m.Kind {
	case MachineRBM:
		rbm, err := machine.NewRBMSpin(hi, m.Alpha)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		rbm.InitRandomParameters(m.Seed, m.Sigma)
		return rbm, nil
	case MachineRBMMultiVal:
		rbm, err := machine.NewRBMMultiVal(hi, m.Alpha)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		rbm.InitRandomParameters(m.Seed, m.Sigma)
		return rbm, nil
	case MachineRBMSymm:
		rbm, err := machine.NewRBMSpinSymm(hi, m.Alpha, nil)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		rbm.InitRandomParameters(m.Seed, m.Sigma)
		return rbm, nil
	case MachineMPS:
		mps, err := machine.RandMPS(hi, m.BondDim, m.Seed, m.Sigma)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return mps, nil
	case MachineGroundState:
		op, err := operator.NewIsing(hi, operator.ChainEdges(hi.Size(), true), m.H, 1)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		table, _, err := exactdiag.GroundState(op)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return table, nil
	default:
		return nil, errors.Errorf("unknown machine kind %q", m.Kind)
	}
}

// Build returns the configured sampler of m.
func (s Sampler) Build(m machine.Machine, opt sampler.Options) (sampler.Sampler, error) {
	newKernel, err := s.kernel(m.Hilbert())
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if s.Replicas == 0 {
		metropolis, err := sampler.NewMetropolis(m, newKernel(), opt)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return metropolis, nil
	}
	pt, err := sampler.NewParallelTempering(m, newKernel, sampler.DefaultBetas(s.Replicas), opt)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return pt, nil
}

// kernel returns a constructor of the configured kernel.
// Kernels are stateless, so every replica may share one.
func (s Sampler) kernel(hi *hilbert.Space) (func() sampler.Kernel, error) {
	var k sampler.Kernel
	switch s.Kernel {
	case KernelLocal:
		local, err := sampler.NewLocalKernel(hi)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		k = local
	case KernelHamiltonian:
		op, err := operator.NewIsing(hi, operator.ChainEdges(hi.Size(), true), s.H, 1)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		k = sampler.NewHamiltonianKernel(op)
	case KernelCustom:
		op, err := Moves(hi, s.Moves)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		custom, err := sampler.NewCustomKernel(op)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		k = custom
	default:
		return nil, errors.Errorf("unknown kernel %q", s.Kernel)
	}
	return func() sampler.Kernel { return k }, nil
}

// Moves returns the operator whose terms are the named moves on a periodic chain.
// A flip acts on every site, an exchange on every nearest neighbour bond.
func Moves(hi *hilbert.Space, moves []string) (*operator.LocalOperator, error) {
	var ops [][][]complex64
	var actingOn [][]int
	for _, m := range moves {
		switch m {
		case MoveFlip:
			for i := range hi.Size() {
				ops = append(ops, operator.PauliX)
				actingOn = append(actingOn, []int{i})
			}
		case MoveExchange:
			for _, e := range operator.ChainEdges(hi.Size(), true) {
				ops = append(ops, operator.Exchange)
				actingOn = append(actingOn, []int{e[0], e[1]})
			}
		default:
			return nil, errors.Errorf("unknown move %q", m)
		}
	}
	op, err := operator.NewLocalOperator(hi, ops, actingOn)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return op, nil
}

// Options returns the sampler options of sampler i.
// Samplers get distinct seeds derived from the run seed.
func (cfg Config) Options(i int, log logger.Logger) sampler.Options {
	return sampler.NewOptions().Seed(cfg.Seed + uint64(i)).Parallel(cfg.Parallel).Logger(log)
}
