package store

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestHistogram(t *testing.T) {
	t.Parallel()
	tests := []struct {
		run  string
		hist []float64
	}{
		{run: "local", hist: []float64{3, 0, 5, 2}},
		{run: "exact", hist: []float64{0, 0, 0, 10}},
		{run: "empty", hist: []float64{0, 0}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s %v", test.run, test.hist), func(t *testing.T) {
			t.Parallel()
			dir, err := os.MkdirTemp("", "")
			if err != nil {
				t.Fatalf("%+v", err)
			}
			defer os.RemoveAll(dir)

			s := MustOpen(filepath.Join(dir, "qmc.db"))
			defer s.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			// Overwriting replaces previous bins.
			if err := s.WriteHistogram(ctx, test.run, []float64{1, 1}); err != nil {
				t.Fatalf("%+v", err)
			}
			if err := s.WriteHistogram(ctx, test.run, test.hist); err != nil {
				t.Fatalf("%+v", err)
			}
			hist, err := s.ReadHistogram(ctx, test.run, len(test.hist))
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if !slices.Equal(hist, test.hist) {
				t.Fatalf("%v, expected %v", hist, test.hist)
			}
		})
	}
}

func TestRunsAndResults(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)
	dbPath := filepath.Join(dir, "qmc.db")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for _, run := range []string{"local", "custom", "hamiltonian"} {
		if err := s.WriteHistogram(ctx, run, []float64{1, 2}); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	results := []Result{
		{Run: "custom", Samples: 10000, Z: 0.011, Tolerance: 0.01, Acceptance: 0.4, Seed: math.MaxUint64, Pass: true},
		{Run: "local", Samples: 10000, Z: 0.2, Tolerance: 0.01, Acceptance: 0.6, Seed: 7, Pass: false},
	}
	for _, r := range results {
		if err := s.WriteResult(ctx, r); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("%+v", err)
	}

	// Data survive reopening.
	s = MustOpen(dbPath)
	defer s.Close()
	runs, err := s.Runs(ctx)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if expected := []string{"custom", "hamiltonian", "local"}; !slices.Equal(runs, expected) {
		t.Fatalf("%v, expected %v", runs, expected)
	}
	got, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !slices.Equal(got, results) {
		t.Fatalf("%#v, expected %#v", got, results)
	}

	if err := s.Delete(ctx, "local"); err != nil {
		t.Fatalf("%+v", err)
	}
	runs, err = s.Runs(ctx)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if expected := []string{"custom", "hamiltonian"}; !slices.Equal(runs, expected) {
		t.Fatalf("%v, expected %v", runs, expected)
	}
	hist, err := s.ReadHistogram(ctx, "local", 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !slices.Equal(hist, []float64{0, 0}) {
		t.Fatalf("%v", hist)
	}
	if _, err := s.ReadHistogram(ctx, "custom", 1); err == nil {
		t.Fatalf("expected error")
	}
}
