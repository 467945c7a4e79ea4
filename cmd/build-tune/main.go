// Command build-tune samples seeded builds of one instance and reports how
// their cost is distributed.
package main

import (
	"fmt"
	"io"
	"maps"
	"math"
	"math/rand"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"groups/instfile"
	"groups/solver"
)

type runResult struct {
	seed    int64
	cost    float64
	key     string
	valid   bool
	elapsed time.Duration
}

// sample builds inst runs times, each with its own rng seeded from seed, on
// at most workers goroutines. Results are returned in run order.
func sample(inst *solver.Instance, mode solver.Mode, runs, workers int, seed int64) ([]runResult, error) {
	results := make([]runResult, runs)
	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for run := range runs {
		g.Go(func() error {
			s := seed + int64(run)*31337
			start := time.Now()
			sol, err := solver.Build(inst, mode, rand.New(rand.NewSource(s)))
			if err != nil {
				return fmt.Errorf("run %d: %w", run, err)
			}
			valid, _ := sol.IsValid()
			results[run] = runResult{
				seed:    s,
				cost:    sol.Evaluate(),
				key:     solver.Key(sol),
				valid:   valid,
				elapsed: time.Since(start),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

const costTolerance = 1e-9

func printStats(w io.Writer, label string, results []runResult) {
	runs := len(results)
	fmt.Fprintf(w, "--- %s ---\n", label)
	if runs == 0 {
		fmt.Fprintln(w, "  no runs")
		return
	}

	costs := make([]float64, runs)
	var totalTime time.Duration
	invalid := 0
	for i, r := range results {
		costs[i] = r.cost
		totalTime += r.elapsed
		if !r.valid {
			invalid++
		}
	}
	mean, std := stat.MeanStdDev(costs, nil)
	lo, hi := floats.Min(costs), floats.Max(costs)
	if runs == 1 {
		std = 0
	}

	fmt.Fprintf(w, "  avg time: %v\n", totalTime/time.Duration(runs))
	fmt.Fprintf(w, "  cost: min %g  mean %.4f  stddev %.4f  max %g\n", lo, mean, std, hi)
	if invalid > 0 {
		fmt.Fprintf(w, "  invalid builds: %d/%d\n", invalid, runs)
	}

	scores := map[float64]int{}
	for _, c := range costs {
		scores[math.Round(c*1e4)/1e4]++
	}
	fmt.Fprintf(w, "  score distribution:\n")
	for _, s := range slices.Sorted(maps.Keys(scores)) {
		c := scores[s]
		fmt.Fprintf(w, "    cost %g: %d/%d runs (%.0f%%)\n", s, c, runs, float64(c)/float64(runs)*100)
	}

	best := map[string]int{}
	all := map[string]struct{}{}
	for _, r := range results {
		all[r.key] = struct{}{}
		if math.Abs(r.cost-lo) <= costTolerance {
			best[r.key]++
		}
	}
	fmt.Fprintf(w, "  distinct assignments: %d\n", len(all))
	fmt.Fprintf(w, "  distinct lowest-cost assignments: %d\n", len(best))
	fmt.Fprintln(w)
}

func main() {
	path := pflag.String("instance", "", "instance file (text or .yaml)")
	runs := pflag.Int("runs", 100, "number of builds per mode")
	workers := pflag.Int("workers", 4, "concurrent builds")
	seed := pflag.Int64("seed", 1, "base random seed")
	modes := pflag.String("modes", "randomized", "comma-separated build modes: deterministic, randomized")
	pflag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "--instance is required")
		os.Exit(2)
	}
	inst, err := instfile.LoadInstance(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading instance: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Students: %d, Projects: %d, Mentors: %d, Topics: %d\n",
		inst.NumStudents(), inst.NumProjects(), inst.NumMentors(), inst.NumTopics())
	fmt.Printf("Runs per mode: %d, workers: %d\n\n", *runs, *workers)

	for _, name := range strings.Split(*modes, ",") {
		mode, err := solver.ParseMode(strings.TrimSpace(name))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		results, err := sample(inst, mode, *runs, *workers, *seed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sampling %s: %v\n", mode, err)
			os.Exit(1)
		}
		printStats(os.Stdout, fmt.Sprintf("%s seed=%d", mode, *seed), results)
	}
}
