// Command analyze prints quick, human-readable facts about track files:
// dimensions, rail piece counts, and how the simulation ends under each
// stop policy (first crash site, survivor, ticks taken).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/railroad/game/config"
	"github.com/wricardo/mcp-training/railroad/game/engine"
	"github.com/wricardo/mcp-training/railroad/logging"
	"github.com/wricardo/mcp-training/railroad/validate"
)

// TrackReport is the analysis of one track file
type TrackReport struct {
	File    string            `json:"file"`
	Name    string            `json:"name"`
	Stats   engine.TrackStats `json:"stats"`
	Results []PolicyResult    `json:"results"`
	Error   string            `json:"error,omitempty"`
}

// PolicyResult is how a run ends under one stop policy
type PolicyResult struct {
	Policy     engine.StopPolicy `json:"policy"`
	Ticks      int               `json:"ticks"`
	Finished   bool              `json:"finished"`
	Crashes    int               `json:"crashes"`
	FirstCrash *engine.Crash     `json:"first_crash,omitempty"`
	Survivor   *engine.CartView  `json:"survivor,omitempty"`
	Derailed   string            `json:"derailed,omitempty"`
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Summarise track files and how their simulations end",
		ArgsUsage: "[file or directory ...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-ticks",
				Value: engine.MaxTicksPerCall,
				Usage: "tick budget per run",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print reports as JSON",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logging.Setup(cmd.String("log-level"), os.Stderr)

			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				paths = []string{"tracks"}
			}

			files, err := collectFiles(paths)
			if err != nil {
				return err
			}

			reports := make([]TrackReport, 0, len(files))
			for _, file := range files {
				reports = append(reports, analyzeTrack(file, cmd.Int("max-ticks")))
			}

			if cmd.Bool("json") {
				enc := json.NewEncoder(cmd.Root().Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			for _, report := range reports {
				printReport(cmd.Root().Writer, report)
			}
			return nil
		},
	}
}

// collectFiles expands directories into their track files
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := filepath.Ext(entry.Name())
			for _, supported := range config.Extensions {
				if ext == supported {
					files = append(files, filepath.Join(path, entry.Name()))
					break
				}
			}
		}
	}
	return files, nil
}

func analyzeTrack(path string, maxTicks int) TrackReport {
	report := TrackReport{File: filepath.Base(path)}

	track, err := config.ReadTrackFile(path)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Name = track.Name

	parsed, carts, err := engine.ParseTrack(track.Text())
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Stats = engine.AnalyzeTrack(parsed, len(carts))

	for _, policy := range []engine.StopPolicy{engine.StopAtFirstCrash, engine.StopAtLastCart} {
		outcome, err := validate.Simulate(track, policy, maxTicks)
		if err != nil {
			log.Warn().Err(err).Str("file", report.File).Str("policy", string(policy)).Msg("simulation failed")
			continue
		}

		result := PolicyResult{
			Policy:   outcome.Policy,
			Ticks:    outcome.Ticks,
			Finished: outcome.Finished,
			Crashes:  len(outcome.Crashes),
			Survivor: outcome.Survivor,
		}
		if len(outcome.Crashes) > 0 {
			first := outcome.Crashes[0]
			result.FirstCrash = &first
		}
		if outcome.Derailment != nil {
			result.Derailed = outcome.Derailment.Error()
		}
		report.Results = append(report.Results, result)
	}

	return report
}

func printReport(w io.Writer, report TrackReport) {
	fmt.Fprintf(w, "\n=== Analyzing %s ===\n", report.File)
	if report.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", report.Error)
		return
	}

	s := report.Stats
	fmt.Fprintf(w, "Name: %s\n", report.Name)
	fmt.Fprintf(w, "Grid: %d x %d", s.Cols, s.Rows)
	if s.Ragged {
		fmt.Fprint(w, " (ragged rows)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Carts: %d\n", s.Carts)
	fmt.Fprintf(w, "Pieces: %d straight, %d curves, %d intersections\n", s.Straights, s.Curves, s.Intersections)

	for _, r := range report.Results {
		fmt.Fprintf(w, "[%s] ", r.Policy)
		switch {
		case r.Derailed != "":
			fmt.Fprintf(w, "⚠️  %s\n", r.Derailed)
			continue
		case !r.Finished:
			fmt.Fprintf(w, "not finished after %d ticks (%d crashes)\n", r.Ticks, r.Crashes)
			continue
		}

		fmt.Fprintf(w, "finished on tick %d with %d crashes", r.Ticks, r.Crashes)
		if r.FirstCrash != nil {
			fmt.Fprintf(w, ", first at %d,%d", r.FirstCrash.Position.X, r.FirstCrash.Position.Y)
		}
		if r.Survivor != nil {
			fmt.Fprintf(w, ", survivor at %d,%d", r.Survivor.X, r.Survivor.Y)
		}
		fmt.Fprintln(w)
	}
}
