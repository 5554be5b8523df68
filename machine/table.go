package machine

import (
	"math/cmplx"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/qmc/hilbert"
)

// Table is a wavefunction given explicitly by its amplitude on every configuration,
// such as an exact ground state.
type Table struct {
	hi     *hilbert.Space
	logAmp []complex128
}

// NewTable returns a machine with ψ(v) = amplitudes[hi.StateToNumber(v)].
func NewTable(hi *hilbert.Space, amplitudes []complex128) (*Table, error) {
	n, err := hi.CheckNumStates()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if len(amplitudes) != n {
		return nil, errors.Errorf("%d amplitudes, expected %d", len(amplitudes), n)
	}
	m := &Table{hi: hi, logAmp: make([]complex128, n)}
	for i, a := range amplitudes {
		m.logAmp[i] = cmplx.Log(a)
	}
	return m, nil
}

func (m *Table) Hilbert() *hilbert.Space { return m.hi }

func (m *Table) LogVal(v []float64) complex128 {
	return m.logAmp[m.hi.StateToNumber(v)]
}

// LogAmplitudes returns log ψ over all configurations in index order.
func (m *Table) LogAmplitudes() []complex128 {
	return slices.Clone(m.logAmp)
}
