package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/railroad/game/config"
	"github.com/wricardo/mcp-training/railroad/game/engine"
	"github.com/wricardo/mcp-training/railroad/validate"
)

// runOptions controls a terminal run of one track
type runOptions struct {
	Policy   engine.StopPolicy
	MaxTicks int
	Strict   bool
	Animate  bool
	Delay    time.Duration
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a track to completion and print the crashes and surviving carts",
		ArgsUsage: "[track file or name]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "policy", Usage: "last_cart or first_crash (defaults to the track's own policy)"},
			&cli.IntFlag{Name: "max-ticks", Value: engine.MaxTicksPerCall, Usage: "give up after this many ticks"},
			&cli.BoolFlag{Name: "strict", Usage: "reject tracks whose rows differ in width"},
			&cli.BoolFlag{Name: "animate", Usage: "redraw the grid after every tick"},
			&cli.DurationFlag{Name: "delay", Value: 200 * time.Millisecond, Usage: "pause between animation frames"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			track, err := resolveTrack(cmd.String("track-dir"), cmd.Args().First())
			if err != nil {
				return err
			}

			return runTrack(cmd.Root().Writer, track, runOptions{
				Policy:   engine.StopPolicy(cmd.String("policy")),
				MaxTicks: cmd.Int("max-ticks"),
				Strict:   cmd.Bool("strict"),
				Animate:  cmd.Bool("animate"),
				Delay:    cmd.Duration("delay"),
			})
		},
	}
}

// resolveTrack treats arg as a file path when one exists, otherwise as a
// track name in trackDir. An empty arg selects the default track.
func resolveTrack(trackDir, arg string) (*engine.TrackConfig, error) {
	if arg != "" {
		if info, err := os.Stat(arg); err == nil && !info.IsDir() {
			return config.ReadTrackFile(arg)
		}
	}

	if _, err := os.Stat(trackDir); err != nil {
		if arg == "" {
			return engine.DefaultTrackConfig(), nil
		}
		return nil, fmt.Errorf("track %q not found", arg)
	}

	manager, err := config.NewManager(trackDir)
	if err != nil {
		return nil, err
	}
	if arg == "" {
		return manager.GetDefault(), nil
	}
	return manager.LoadConfig(arg)
}

// runTrack ticks track until it is done and writes the final grid and the
// crash report to w. A cart leaving the rails ends the run with a
// *engine.Derailment error.
func runTrack(w io.Writer, track *engine.TrackConfig, opts runOptions) (err error) {
	var engineOpts []engine.Option
	if opts.Policy != "" {
		engineOpts = append(engineOpts, engine.WithPolicy(opts.Policy))
	}
	if opts.Strict {
		engineOpts = append(engineOpts, engine.WithStrictGrid())
	}

	sim, err := engine.NewSimulationFromConfig(track, engineOpts...)
	if err != nil {
		return err
	}

	maxTicks := opts.MaxTicks
	if maxTicks <= 0 {
		maxTicks = engine.MaxTicksPerCall
	}

	log.Debug().
		Str("track", track.Name).
		Str("policy", string(sim.Policy())).
		Int("carts", sim.CartCount()).
		Msg("Running track")

	defer func() {
		if r := recover(); r != nil {
			derailment, ok := r.(*engine.Derailment)
			if !ok {
				panic(r)
			}
			fmt.Fprint(w, sim.String())
			err = derailment
		}
	}()

	for !sim.Done() && sim.Ticks() < maxTicks {
		if opts.Animate {
			fmt.Fprint(w, sim.String())
			time.Sleep(opts.Delay)
			fmt.Fprintf(w, "\x1b[%dA", sim.DisplaySize())
		}
		sim.Tick()
	}

	fmt.Fprint(w, sim.String())
	writeRunReport(w, sim)

	if !sim.Done() {
		return fmt.Errorf("%w: %d carts left after %d ticks", engine.ErrTickLimit, sim.CartCount(), sim.Ticks())
	}
	return nil
}

func writeRunReport(w io.Writer, sim *engine.Simulation) {
	if sim.Done() {
		fmt.Fprintf(w, "\nFinished after %d ticks (%s)\n", sim.Ticks(), sim.Policy())
	} else {
		fmt.Fprintf(w, "\nStopped after %d ticks without finishing (%s)\n", sim.Ticks(), sim.Policy())
	}

	crashes := sim.Crashes()
	if len(crashes) == 0 {
		fmt.Fprintln(w, "Crashed carts: none")
	} else {
		fmt.Fprintln(w, "Crashed carts:")
		for _, crash := range crashes {
			fmt.Fprintf(w, "  tick %d at %d,%d\n", crash.Tick, crash.Position.X, crash.Position.Y)
		}
	}

	if pos, cart, ok := sim.Survivor(); ok {
		fmt.Fprintf(w, "Cart left: %d,%d heading %s\n", pos.X, pos.Y, cart.Direction)
		return
	}
	fmt.Fprintf(w, "Carts left: %d\n", sim.CartCount())
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate every track file in a directory",
		ArgsUsage: "[dir]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.Args().First()
			if dir == "" {
				dir = cmd.String("track-dir")
			}

			results, err := validate.ValidateDir(dir)
			if err != nil {
				return err
			}

			if invalid := printValidation(cmd.Root().Writer, dir, results); invalid > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d track files are invalid", invalid, len(results)), 1)
			}
			return nil
		},
	}
}

// printValidation writes one block per file and returns the invalid count
func printValidation(w io.Writer, dir string, results []validate.ValidationResult) int {
	fmt.Fprintf(w, "Validating track files in: %s\n", dir)

	invalid := 0
	for _, result := range results {
		fmt.Fprintf(w, "\n=== %s ===\n", result.File)
		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
		} else {
			invalid++
			fmt.Fprintln(w, "❌ INVALID")
		}
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  ERROR: %s\n", e)
		}
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  WARNING: %s\n", warning)
		}
		for _, info := range result.Info {
			fmt.Fprintf(w, "  %s\n", info)
		}
	}

	fmt.Fprintf(w, "\n=== Summary ===\n")
	fmt.Fprintf(w, "Total files: %d\n", len(results))
	fmt.Fprintf(w, "Valid: %d\n", len(results)-invalid)
	fmt.Fprintf(w, "Invalid: %d\n", invalid)
	return invalid
}
