// Command bep reads an instance, builds one solution and writes the solution
// file, and optionally the stats report and a CSV of the groups.
package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"groups/config"
	"groups/instfile"
	"groups/logging"
	"groups/solver"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("bep", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	instancePath := fs.String("instance", "", "instance file (text or .yaml)")
	outputPath := fs.String("output", "", "solution file, stdout when empty")
	statsPath := fs.String("stats", "", "stats report file")
	csvPath := fs.String("csv", "", "group CSV file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *instancePath == "" {
		return errors.New("--instance is required")
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer log.Sync()

	mode, err := solver.ParseMode(cfg.Build.Mode)
	if err != nil {
		return err
	}

	inst, err := instfile.LoadInstance(*instancePath)
	if err != nil {
		return fmt.Errorf("reading instance: %w", err)
	}
	log.Info("instance loaded",
		zap.String("path", *instancePath),
		zap.Int("students", inst.NumStudents()),
		zap.Int("projects", inst.NumProjects()),
		zap.Int("mentors", inst.NumMentors()),
		zap.Int("topics", inst.NumTopics()))

	sol, err := solver.Build(inst, mode, rand.New(rand.NewSource(cfg.Build.Seed)))
	if err != nil {
		return fmt.Errorf("building solution: %w", err)
	}
	if valid, reason := sol.IsValid(); !valid {
		log.Warn("solution is invalid", zap.String("reason", reason))
	}
	sol.Evaluate()
	b, _ := sol.Breakdown()
	log.Info("solution built",
		zap.Stringer("mode", mode),
		zap.Int64("seed", cfg.Build.Seed),
		zap.Float64("total", b.Total),
		zap.Float64("performance", b.Performance),
		zap.Float64("cohesion", b.Cohesion),
		zap.Float64("workload", b.Workload))

	if *outputPath == "" {
		if err := instfile.WriteSolution(stdout, sol); err != nil {
			return err
		}
	} else if err := writeFile(*outputPath, sol, instfile.WriteSolution); err != nil {
		return err
	}
	if *statsPath != "" {
		if err := writeFile(*statsPath, sol, instfile.WriteStats); err != nil {
			return err
		}
	}
	if *csvPath != "" {
		if err := writeFile(*csvPath, sol, instfile.WriteGroupsCSV); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, sol *solver.Solution, write func(io.Writer, *solver.Solution) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, sol); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
