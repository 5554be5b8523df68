package machine

import (
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"github.com/fumin/tensor"

	"github.com/fumin/qmc/hilbert"
)

func spinHalf(n int) *hilbert.Space {
	hi, err := hilbert.Spin(0.5, n)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return hi
}

func TestLnCosh(t *testing.T) {
	t.Parallel()
	tests := []complex128{0, 1, -1, 0.3 + 0.7i, -2 - 0.4i, 5i}
	for _, z := range tests {
		t.Run(fmt.Sprintf("%v", z), func(t *testing.T) {
			t.Parallel()
			got := cmplx.Exp(lnCosh(z))
			want := cmplx.Cosh(z)
			if cmplx.Abs(got-want) > 1e-12 {
				t.Fatalf("%v, expected %v", got, want)
			}
		})
	}

	// Large arguments must not overflow.
	if v := lnCosh(1000); math.Abs(real(v)-(1000-math.Ln2)) > 1e-9 {
		t.Fatalf("%v", v)
	}
}

func TestRBMSpinZeroParameters(t *testing.T) {
	t.Parallel()
	hi := spinHalf(4)
	m, err := NewRBMSpin(hi, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if m.NumHidden() != 8 {
		t.Fatalf("%d", m.NumHidden())
	}
	for _, v := range hi.States() {
		if lv := m.LogVal(v); cmplx.Abs(lv) > 1e-12 {
			t.Fatalf("%v %v", v, lv)
		}
	}
}

func TestRBMSpinDeterministic(t *testing.T) {
	t.Parallel()
	hi := spinHalf(6)
	m1, _ := NewRBMSpin(hi, 1)
	m1.InitRandomParameters(1234, 0.2)
	m2, _ := NewRBMSpin(hi, 1)
	m2.InitRandomParameters(1234, 0.2)
	m3, _ := NewRBMSpin(hi, 1)
	m3.InitRandomParameters(4321, 0.2)

	v := []float64{1, -1, 1, 1, -1, -1}
	if m1.LogVal(v) != m2.LogVal(v) {
		t.Fatalf("%v %v", m1.LogVal(v), m2.LogVal(v))
	}
	if m1.LogVal(v) == m3.LogVal(v) {
		t.Fatalf("different seeds gave the same amplitude %v", m1.LogVal(v))
	}
}

func TestRBMSpinSymmInvariance(t *testing.T) {
	t.Parallel()
	hi := spinHalf(6)
	m, err := NewRBMSpinSymm(hi, 2, nil)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	m.InitRandomParameters(1234, 0.2)

	v := []float64{1, -1, -1, 1, 1, -1}
	lv := m.LogVal(v)
	for _, p := range Translations(6) {
		w := make([]float64, len(v))
		for i := range v {
			w[p[i]] = v[i]
		}
		if lw := m.LogVal(w); cmplx.Abs(lw-lv) > 1e-9 {
			t.Fatalf("%v %v, expected %v", w, lw, lv)
		}
	}

	if _, err := NewRBMSpinSymm(hi, 1, [][]int{{0, 0, 1, 2, 3, 4}}); err == nil {
		t.Fatalf("expected invalid permutation error")
	}
}

func TestRBMMultiVal(t *testing.T) {
	t.Parallel()
	hi, err := hilbert.Boson(4, 3)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	m, err := NewRBMMultiVal(hi, 1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	m.InitRandomParameters(1234, 0.2)
	distinct := make(map[complex128]bool)
	for _, v := range hi.States() {
		lv := m.LogVal(v)
		if cmplx.IsNaN(lv) || cmplx.IsInf(lv) {
			t.Fatalf("%v %v", v, lv)
		}
		distinct[lv] = true
	}
	if len(distinct) != hi.NumStates() {
		t.Fatalf("%d distinct amplitudes, expected %d", len(distinct), hi.NumStates())
	}

	unbounded, _ := hilbert.Boson(-1, 3)
	if _, err := NewRBMMultiVal(unbounded, 1); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMPSProductState(t *testing.T) {
	t.Parallel()
	hi := spinHalf(5)
	// Every site contributes 1 for spin down and 2 for spin up.
	sites := make([]*tensor.Dense, 0, hi.Size())
	for range hi.Size() {
		s := tensor.Zeros(1, 2, 1)
		s.SetAt([]int{0, 0, 0}, 1)
		s.SetAt([]int{0, 1, 0}, 2)
		sites = append(sites, s)
	}
	m, err := NewMPS(hi, sites)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for _, v := range hi.States() {
		var ups float64
		for _, x := range v {
			if x == 1 {
				ups++
			}
		}
		want := ups * math.Ln2
		if lv := m.LogVal(v); cmplx.Abs(lv-complex(want, 0)) > 1e-6 {
			t.Fatalf("%v %v, expected %f", v, lv, want)
		}
	}
}

func TestRandMPS(t *testing.T) {
	t.Parallel()
	hi := spinHalf(6)
	m, err := RandMPS(hi, 3, 7, 0.1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for _, v := range hi.States() {
		lv := m.LogVal(v)
		if cmplx.IsNaN(lv) || math.IsInf(real(lv), 0) {
			t.Fatalf("%v %v", v, lv)
		}
	}
}

func TestTable(t *testing.T) {
	t.Parallel()
	hi := spinHalf(2)
	m, err := NewTable(hi, []complex128{1, 2, -1, 1i})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	tests := []struct {
		v   []float64
		amp complex128
	}{
		{v: []float64{-1, -1}, amp: 1},
		{v: []float64{-1, 1}, amp: 2},
		{v: []float64{1, -1}, amp: -1},
		{v: []float64{1, 1}, amp: 1i},
	}
	for _, test := range tests {
		if a := cmplx.Exp(m.LogVal(test.v)); cmplx.Abs(a-test.amp) > 1e-12 {
			t.Fatalf("%v %v, expected %v", test.v, a, test.amp)
		}
	}

	if _, err := NewTable(hi, []complex128{1}); err == nil {
		t.Fatalf("expected error")
	}
}
