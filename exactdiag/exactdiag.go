// Package exactdiag diagonalizes operators on spaces small enough to store as dense matrices.
package exactdiag

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/qmc/hilbert"
	"github.com/fumin/qmc/machine"
	"github.com/fumin/qmc/operator"
)

// MaxStates is the largest space whose operators are diagonalized.
const MaxStates = 1 << 12

// ValVec is an eigenvalue and its normalized eigenvector.
type ValVec struct {
	Val float64
	Vec []float64
}

// Matrix returns the dense matrix of op, indexed by hilbert.Space.StateToNumber.
// It panics if op is not real symmetric.
func Matrix(op operator.Operator) *mat.SymDense {
	m, err := matrix(op)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return m
}

func matrix(op operator.Operator) (*mat.SymDense, error) {
	hi := op.Hilbert()
	n, err := hi.CheckNumStates()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if n > MaxStates {
		return nil, errors.Errorf("%v has %d states, more than %d", hi, n, MaxStates)
	}

	dense := mat.NewDense(n, n, nil)
	for row, v := range hi.States() {
		for _, c := range op.FindConn(v) {
			if imag(c.Mel) != 0 {
				return nil, errors.Errorf("not real %v at %v", c.Mel, v)
			}
			col := hi.StateToNumber(c.V)
			dense.Set(row, col, dense.At(row, col)+real(c.Mel))
		}
	}

	sym := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			if d := dense.At(i, j) - dense.At(j, i); math.Abs(d) > 1e-12 {
				return nil, errors.Errorf("not symmetric at %d %d: %f %f", i, j, dense.At(i, j), dense.At(j, i))
			}
			sym.SetSym(i, j, dense.At(i, j))
		}
	}
	return sym, nil
}

// Eigen returns the eigenpairs of op in ascending order of eigenvalue.
func Eigen(op operator.Operator) []ValVec {
	vvs, err := eigen(op)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return vvs
}

func eigen(op operator.Operator) ([]ValVec, error) {
	m, err := matrix(op)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(m, true); !ok {
		return nil, errors.Errorf("eig.Factorize failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	rows, _ := vecs.Dims()
	vvs := make([]ValVec, 0, len(vals))
	for i, v := range vals {
		vec := make([]float64, 0, rows)
		for j := range rows {
			vec = append(vec, vecs.At(j, i))
		}
		vvs = append(vvs, ValVec{Val: v, Vec: vec})
	}
	return vvs, nil
}

// GroundState returns the lowest eigenvector of op as a machine, together with its energy.
func GroundState(op operator.Operator) (*machine.Table, float64, error) {
	vvs, err := eigen(op)
	if err != nil {
		return nil, math.NaN(), errors.Wrap(err, "")
	}
	ground := vvs[0]
	amplitudes := make([]complex128, len(ground.Vec))
	for i, a := range ground.Vec {
		amplitudes[i] = complex(a, 0)
	}
	m, err := machine.NewTable(op.Hilbert(), amplitudes)
	if err != nil {
		return nil, math.NaN(), errors.Wrap(err, "")
	}
	return m, ground.Val, nil
}

// Statistics are observables of the ground state of a spin chain.
type Statistics struct {
	EigenValue     []float64
	Magnetization  float64
	BinderCumulant float64
}

// GetStatistics returns the spectrum of vvs, and the magnetization and Binder cumulant of vvs[0].
// The magnetization of a configuration is |Σ_i v_i| per site, which does not distinguish
// the two broken symmetry states.
func GetStatistics(hi *hilbert.Space, vvs []ValVec) (Statistics, error) {
	var stats Statistics
	for _, vv := range vvs {
		stats.EigenValue = append(stats.EigenValue, vv.Val)
	}
	ground := vvs[0]
	if len(ground.Vec) != hi.NumStates() {
		return Statistics{}, errors.Errorf("%d %d", len(ground.Vec), hi.NumStates())
	}

	var totalProb float64
	var m2, m4 float64
	for i, v := range hi.States() {
		probability := ground.Vec[i] * ground.Vec[i]

		var basisM float64
		for _, spin := range v {
			basisM += spin
		}
		basisM = math.Abs(basisM)

		totalProb += probability
		stats.Magnetization += probability * basisM
		m2 += probability * math.Pow(basisM, 2)
		m4 += probability * math.Pow(basisM, 4)
	}
	if math.Abs(totalProb-1) > 1e-3 {
		return Statistics{}, errors.Errorf("%f", totalProb)
	}

	stats.Magnetization /= float64(hi.Size())
	stats.BinderCumulant = 1 - m4/(3*m2*m2)
	return stats, nil
}

// Energy returns ⟨ψ|H|ψ⟩/⟨ψ|ψ⟩ of a machine by summing over all configurations.
func Energy(op operator.Operator, m machine.Machine) float64 {
	hi := op.Hilbert()
	var num complex128
	var norm float64
	for _, v := range hi.States() {
		lv := m.LogVal(v)
		psi := cmplx.Exp(lv)
		norm += real(psi)*real(psi) + imag(psi)*imag(psi)
		for _, c := range op.FindConn(v) {
			num += cmplx.Conj(psi) * c.Mel * cmplx.Exp(m.LogVal(c.V))
		}
	}
	return real(num) / norm
}
