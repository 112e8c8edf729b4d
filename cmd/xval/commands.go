package main

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/thalesfsp/xval"
	"github.com/thalesfsp/xval/internal/logger"
)

// =============================================================================
// ROOT
// =============================================================================

// newRootCmd builds the command tree. Every call returns fresh flag state.
func newRootCmd() *cobra.Command {
	var (
		logLevel string
		logJSON  bool
	)

	root := &cobra.Command{
		Use:   "xval",
		Short: "Inspect cross-validation splits, budget schedules and parameter spaces",
		Long: `xval prints what a search would do before any model is trained:
the per-round budget of successive halving, the indices of every
resampling split, and the combinations of a declared parameter space.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			log := logger.NewText(logLevel, cmd.ErrOrStderr())
			if logJSON {
				log = logger.New(logLevel, cmd.ErrOrStderr())
			}

			slog.SetDefault(log)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON instead of text")

	root.AddCommand(newAllocateCmd(), newSplitsCmd(), newSpaceCmd())

	return root
}

// =============================================================================
// ALLOCATE
// =============================================================================

func newAllocateCmd() *cobra.Command {
	var (
		name   string
		budget float64
		arms   int
		rate   float64
		rounds int
	)

	mode := xval.GeometricAllocation

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Print the successive halving schedule for a budget",
		Long: `Prints, per round, how many arms are fitted, how many survive and
the budget each arm receives.

Examples:
  xval allocate --budget 81 --arms 8
  xval allocate --budget 81 --arms 27 --rate 3 --mode hyperband --rounds 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := xval.NewBudget(name, budget)
			if err != nil {
				return err
			}

			var schedule []xval.Round[float64]
			if rounds > 0 {
				schedule, err = xval.AllocateRounds(b, mode, arms, rate, rounds)
			} else {
				schedule, err = xval.Allocate(b, mode, arms, rate)
			}

			if err != nil {
				return err
			}

			slog.Debug("schedule computed", "mode", mode, "rounds", len(schedule))

			return printSchedule(cmd.OutOrStdout(), schedule)
		},
	}

	cmd.Flags().StringVar(&name, "name", "budget", "name of the budget argument")
	cmd.Flags().Float64Var(&budget, "budget", 0, "total budget")
	cmd.Flags().IntVar(&arms, "arms", 0, "number of starting arms")
	cmd.Flags().Float64Var(&rate, "rate", 2, "survival rate, above 1")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "number of rounds; 0 derives it from arms and rate")
	cmd.Flags().Var(&mode, "mode", "allocation mode: geometric, constant or hyperband")

	_ = cmd.MarkFlagRequired("budget")
	_ = cmd.MarkFlagRequired("arms")

	return cmd
}

func printSchedule(w io.Writer, schedule []xval.Round[float64]) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ROUND\tARMS\tSURVIVORS\tBUDGET")

	for i, r := range schedule {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%g\n", i+1, r.Arms, r.Survivors, r.Budget)
	}

	return tw.Flush()
}

// =============================================================================
// SPLITS
// =============================================================================

func newSplitsCmd() *cobra.Command {
	var (
		kind    string
		n       int
		m       int
		k       int
		size    int
		out     int
		partial bool
		seed    int64
	)

	cmd := &cobra.Command{
		Use:   "splits",
		Short: "Print the train and test indices of a resampler over n observations",
		Long: `Builds a resampler over the observations 0..n-1 and prints every split.

Kinds: fixed, random (use --m), loo, kfold (use --k),
forward and sliding (use --size, --out and --partial).

Examples:
  xval splits --kind fixed --n 10 --m 4
  xval splits --kind forward --n 10 --size 4 --out 2 --partial`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := xval.Vector[int](make([]int, max(n, 0)))
			rng := rand.New(rand.NewSource(resolveSeed(seed)))

			r, err := newResampler(kind, data, m, k, size, out, partial, rng)
			if err != nil {
				return err
			}

			slog.Debug("resampler built", "kind", kind, "splits", r.Len())

			w := cmd.OutOrStdout()
			for i := 0; i < r.Len(); i++ {
				train, test := r.Split(i)
				fmt.Fprintf(w, "%d\ttrain=%s\ttest=%s\n", i, joinInts(train), joinInts(test))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "kfold", "resampler kind: fixed, random, loo, kfold, forward or sliding")
	cmd.Flags().IntVar(&n, "n", 0, "number of observations")
	cmd.Flags().IntVar(&m, "m", 0, "training size of fixed and random splits")
	cmd.Flags().IntVar(&k, "k", 5, "number of folds")
	cmd.Flags().IntVar(&size, "size", 0, "initial training size (forward) or window size (sliding)")
	cmd.Flags().IntVar(&out, "out", 1, "test size of forward and sliding splits")
	cmd.Flags().BoolVar(&partial, "partial", false, "keep a shorter trailing test set")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed; 0 is time-based")

	_ = cmd.MarkFlagRequired("n")

	return cmd
}

func newResampler(kind string, data xval.Vector[int], m, k, size, out int, partial bool, rng *rand.Rand) (xval.Resampler[xval.Vector[int]], error) {
	switch strings.ToLower(kind) {
	case "fixed":
		return xval.NewFixedSplit(data, m)
	case "random":
		return xval.NewRandomSplit(data, m, rng)
	case "loo":
		return xval.NewLeaveOneOut(data)
	case "kfold":
		return xval.NewKFold(data, k, rng)
	case "forward":
		return xval.NewForwardChaining(data, size, out, partial)
	case "sliding":
		return xval.NewSlidingWindow(data, size, out, partial)
	default:
		return nil, fmt.Errorf("%w: unknown resampler kind %q", xval.ErrValidation, kind)
	}
}

// =============================================================================
// SPACE
// =============================================================================

func newSpaceCmd() *cobra.Command {
	var (
		path   string
		sample int
		seed   int64
	)

	cmd := &cobra.Command{
		Use:   "space",
		Short: "Enumerate or sample the parameter space of a search file",
		Long: `Loads a search file and prints one combination per line.

Finite spaces are enumerated unless --sample is set; spaces with a
continuous dimension require --sample.

Examples:
  xval space --config search.yaml
  xval space --config search.yaml --sample 10 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := xval.LoadConfig(path)
			if err != nil {
				return err
			}

			space, err := f.ParamSpace()
			if err != nil {
				return err
			}

			if seed == 0 {
				seed = f.Seed
			}

			w := cmd.OutOrStdout()

			if sample > 0 {
				rng := rand.New(rand.NewSource(resolveSeed(seed)))
				for _, p := range space.SampleN(rng, sample) {
					fmt.Fprintln(w, space.Key(p))
				}

				return nil
			}

			finite, ok := space.(*xval.FiniteSpace)
			if !ok {
				return fmt.Errorf("%w: space has a continuous dimension, use --sample", xval.ErrValidation)
			}

			slog.Debug("enumerating space", "combinations", finite.Len())

			for p := range finite.All() {
				fmt.Fprintln(w, space.Key(p))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "path to the search file")
	cmd.Flags().IntVar(&sample, "sample", 0, "number of random combinations; 0 enumerates")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed; 0 uses the file seed, then time")

	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func resolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}

	return time.Now().UnixNano()
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}

	return "[" + strings.Join(parts, " ") + "]"
}
