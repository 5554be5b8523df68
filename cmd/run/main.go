package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/fumin/qmc/config"
	"github.com/fumin/qmc/exactdiag"
	"github.com/fumin/qmc/logger"
	"github.com/fumin/qmc/machine"
	"github.com/fumin/qmc/operator"
	"github.com/fumin/qmc/sampler"
	"github.com/fumin/qmc/stats"
	"github.com/fumin/qmc/store"
)

const runExact = "exact"

var (
	configFlag = cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML run configuration, the built-in six site chain if empty",
	}
	dbFlag = cli.StringFlag{
		Name:  "db",
		Usage: "sqlite database of histograms and results, overrides the config",
	}
	samplesFlag = cli.IntFlag{
		Name:  "samples",
		Usage: "number of samples per sampler, overrides the config",
	}
	parallelFlag = cli.BoolFlag{
		Name:  "parallel",
		Usage: "sweep parallel tempering replicas concurrently",
	}
	quietFlag = cli.BoolFlag{
		Name:  "quiet",
		Usage: "hide progress bars",
	}
)

var app = &cli.App{
	Name:     "qmc",
	HelpName: "run",
	Usage:    "compare MCMC samplers of a wavefunction against exact sampling",
	Flags: []cli.Flag{
		&configFlag,
		&dbFlag,
		&samplesFlag,
		&parallelFlag,
		&quietFlag,
		&logger.LogLevelFlag,
	},
	Action: run,
	Commands: []*cli.Command{
		{
			Name:   "results",
			Usage:  "print the results stored in the database, with z recomputed from the stored histograms",
			Flags:  []cli.Flag{&configFlag, &dbFlag, &logger.LogLevelFlag},
			Action: results,
		},
		{
			Name:      "delete",
			Usage:     "delete the histograms and results of the named runs",
			ArgsUsage: "<run> [<run> ...]",
			Flags:     []cli.Flag{&configFlag, &dbFlag, &logger.LogLevelFlag},
			Action:    deleteRuns,
		},
	},
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := ctx.String(configFlag.Name); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, errors.Wrap(err, "")
		}
	}
	if ctx.IsSet(dbFlag.Name) {
		cfg.DB = ctx.String(dbFlag.Name)
	}
	if ctx.IsSet(samplesFlag.Name) {
		cfg.Samples = ctx.Int(samplesFlag.Name)
	}
	if ctx.IsSet(parallelFlag.Name) {
		cfg.Parallel = ctx.Bool(parallelFlag.Name)
	}
	if ctx.IsSet(logger.LogLevelFlag.Name) {
		cfg.LogLevel = ctx.String(logger.LogLevelFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, errors.Wrap(err, "")
	}
	return cfg, nil
}

// histogram draws n samples of s after thermalize discarded sweeps.
func histogram(s sampler.Sampler, thermalize, n int, quiet bool) []float64 {
	for range thermalize {
		s.Sweep()
	}
	bar := pb.StartNew(n)
	if quiet {
		bar.SetWriter(io.Discard)
	}
	hist := stats.HistogramProgress(s, n, func() { bar.Increment() })
	bar.Finish()
	return hist
}

// spectrum logs the exact energy of m and the observables of the ground state of the chain it is sampled on.
// Only spin-1/2 chains small enough to diagonalize are considered.
func spectrum(log logger.Logger, cfg config.Config, m machine.Machine) error {
	hi := m.Hilbert()
	if !slices.Equal(hi.LocalStates(), []float64{-1, 1}) {
		log.Debugf("no ising spectrum on %v", hi)
		return nil
	}
	if hi.NumStates() > exactdiag.MaxStates {
		log.Debugf("%v has %d states, too many to diagonalize", hi, hi.NumStates())
		return nil
	}
	op, err := operator.NewIsing(hi, operator.ChainEdges(hi.Size(), true), cfg.Machine.H, 1)
	if err != nil {
		return errors.Wrap(err, "")
	}
	vvs := exactdiag.Eigen(op)
	st, err := exactdiag.GetStatistics(hi, vvs)
	if err != nil {
		return errors.Wrap(err, "")
	}
	log.Infof("ground energy %f, magnetization %f, binder %f, machine energy %f", vvs[0].Val, st.Magnetization, st.BinderCumulant, exactdiag.Energy(op, m))
	return nil
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "")
	}
	quiet := ctx.Bool(quietFlag.Name)
	log := logger.NewLogger(cfg.LogLevel, "qmc")
	start := time.Now()

	hi, err := cfg.Hilbert.Build()
	if err != nil {
		return errors.Wrap(err, "")
	}
	m, err := cfg.Machine.Build(hi)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := spectrum(log, cfg, m); err != nil {
		return errors.Wrap(err, "")
	}
	n := cfg.Samples
	if n == 0 {
		n = stats.NumSamples(hi.NumStates())
	}
	log.Noticef("%v, %d states, %d samples", hi, hi.NumStates(), n)

	db, err := store.Open(cfg.DB)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer db.Close()

	exact, err := sampler.NewExact(m, cfg.Options(0, log))
	if err != nil {
		return errors.Wrap(err, "")
	}
	exactHist := histogram(exact, 0, n, quiet)
	if err := db.WriteHistogram(ctx.Context, runExact, exactHist); err != nil {
		return errors.Wrap(err, "")
	}

	fmt.Printf("sampler,z,tolerance,acceptance,pass\n")
	var failed int
	for i, sc := range cfg.Samplers {
		s, err := sc.Build(m, cfg.Options(i+1, log))
		if err != nil {
			return errors.Wrap(err, sc.Name)
		}
		hist := histogram(s, cfg.Thermalize, n, quiet)
		z, pass := stats.Equivalent(exactHist, hist, n)
		r := store.Result{
			Run:        sc.Name,
			Samples:    n,
			Z:          z,
			Tolerance:  stats.Tolerance(n),
			Acceptance: s.Acceptance(),
			Seed:       cfg.Seed + uint64(i+1),
			Pass:       pass,
		}
		if err := save(ctx.Context, db, r, hist); err != nil {
			return errors.Wrap(err, sc.Name)
		}

		if pt, ok := s.(*sampler.ParallelTempering); ok {
			log.Infof("%s swap acceptance %f", sc.Name, pt.SwapAcceptance())
		}
		if pass {
			log.Noticef("%s z %f within %f", sc.Name, z, stats.Tolerance(n))
		} else {
			log.Errorf("%s z %f exceeds %f", sc.Name, z, stats.Tolerance(n))
			failed++
		}
		fmt.Printf("%s,%f,%f,%f,%t\n", r.Run, r.Z, r.Tolerance, r.Acceptance, r.Pass)
	}

	hours, minutes, seconds := logger.ParseTime(time.Since(start))
	log.Noticef("%d samplers done in %d:%02d:%02d", len(cfg.Samplers), hours, minutes, seconds)
	if failed > 0 {
		return errors.Errorf("%d of %d samplers differ from the exact distribution", failed, len(cfg.Samplers))
	}
	return nil
}

func save(ctx context.Context, db *store.Store, r store.Result, hist []float64) error {
	if err := db.WriteHistogram(ctx, r.Run, hist); err != nil {
		return errors.Wrap(err, "")
	}
	if err := db.WriteResult(ctx, r); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func results(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "")
	}
	log := logger.NewLogger(cfg.LogLevel, "qmc")
	hi, err := cfg.Hilbert.Build()
	if err != nil {
		return errors.Wrap(err, "")
	}
	numStates, err := hi.CheckNumStates()
	if err != nil {
		return errors.Wrap(err, "")
	}
	db, err := store.Open(cfg.DB)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer db.Close()

	rs, err := db.Results(ctx.Context)
	if err != nil {
		return errors.Wrap(err, "")
	}
	log.Infof("%d results in %s", len(rs), db.Path)
	exactHist, err := db.ReadHistogram(ctx.Context, runExact, numStates)
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("sampler,samples,z,stored_z,tolerance,acceptance,seed,pass\n")
	for _, r := range rs {
		hist, err := db.ReadHistogram(ctx.Context, r.Run, numStates)
		if err != nil {
			return errors.Wrap(err, r.Run)
		}
		z := stats.L1(exactHist, hist, r.Samples)
		fmt.Printf("%s,%d,%f,%f,%f,%f,%d,%t\n", r.Run, r.Samples, z, r.Z, r.Tolerance, r.Acceptance, r.Seed, r.Pass)
	}
	return nil
}

func deleteRuns(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.Errorf("no runs to delete")
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "")
	}
	log := logger.NewLogger(cfg.LogLevel, "qmc")
	db, err := store.Open(cfg.DB)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer db.Close()

	for _, run := range ctx.Args().Slice() {
		if err := db.Delete(ctx.Context, run); err != nil {
			return errors.Wrap(err, "")
		}
		log.Noticef("deleted %s from %s", run, db.Path)
	}
	return nil
}

func main() {
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}
