// Package validate checks track definition files before they are served.
// For each file it checks:
//   - the file parses as JSON, YAML or raw track text
//   - every character is a rail piece, a cart or a space
//   - there is at least one cart
//   - whether the rows share one width (warning only, unless the track is strict)
//   - a dry run under the track's policy finishes without a cart leaving the rails
package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/railroad/game/config"
	"github.com/wricardo/mcp-training/railroad/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// Errors make the file invalid; Warnings and Info are reported either way.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

// Outcome summarises a simulation run to completion
type Outcome struct {
	Policy     engine.StopPolicy
	Ticks      int
	Finished   bool
	Crashes    []engine.Crash
	CartsLeft  int
	Survivor   *engine.CartView
	Derailment *engine.Derailment
}

// Simulate runs track under policy for at most maxTicks ticks. A derailment
// is reported in the Outcome rather than as an error.
func Simulate(track *engine.TrackConfig, policy engine.StopPolicy, maxTicks int) (outcome *Outcome, err error) {
	sim, err := engine.NewSimulationFromConfig(track, engine.WithPolicy(policy))
	if err != nil {
		return nil, err
	}

	outcome = &Outcome{Policy: sim.Policy()}
	defer func() {
		if r := recover(); r != nil {
			derailment, ok := r.(*engine.Derailment)
			if !ok {
				panic(r)
			}
			outcome.Derailment = derailment
			outcome.Ticks = sim.Ticks()
			outcome.Crashes = sim.Crashes()
			outcome.CartsLeft = sim.CartCount()
		}
	}()

	_, runErr := sim.Run(maxTicks)
	if runErr != nil && !errors.Is(runErr, engine.ErrTickLimit) {
		return nil, runErr
	}

	view := sim.View()
	outcome.Ticks = view.Tick
	outcome.Finished = view.Done
	outcome.Crashes = view.Crashes
	outcome.CartsLeft = view.CartCount
	outcome.Survivor = view.Survivor
	return outcome, nil
}

// ValidateTrackFile loads and checks a single track file
func ValidateTrackFile(path string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(path),
		Valid: true,
	}

	track, err := config.ReadTrackFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	if _, _, err := engine.ParseTrack(track.Text(), engine.WithStrictGrid()); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Ragged rows: %v", err))
	}

	parsed, carts, _ := engine.ParseTrack(track.Text())
	stats := engine.AnalyzeTrack(parsed, len(carts))

	maxTicks := track.MaxTicks
	if maxTicks <= 0 {
		maxTicks = engine.MaxTicksPerCall
	}

	outcome, err := Simulate(track, track.Policy, maxTicks)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Dry run failed: %v", err))
		return result
	}

	switch {
	case outcome.Derailment != nil:
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Dry run: %v", outcome.Derailment))
	case !outcome.Finished:
		result.Warnings = append(result.Warnings, fmt.Sprintf("Dry run: not finished after %d ticks, %d carts left", outcome.Ticks, outcome.CartsLeft))
	}

	result.Info = append(result.Info,
		fmt.Sprintf("✓ Name: %s", track.Name),
		fmt.Sprintf("✓ Grid: %dx%d", stats.Cols, stats.Rows),
		fmt.Sprintf("✓ Carts: %d", stats.Carts),
		fmt.Sprintf("✓ Intersections: %d", stats.Intersections),
		fmt.Sprintf("✓ Policy: %s", outcome.Policy),
	)
	if outcome.Finished {
		result.Info = append(result.Info, fmt.Sprintf("✓ Finishes on tick %d with %d crashes", outcome.Ticks, len(outcome.Crashes)))
	}
	if len(outcome.Crashes) > 0 {
		first := outcome.Crashes[0]
		result.Info = append(result.Info, fmt.Sprintf("✓ First crash: %d,%d", first.Position.X, first.Position.Y))
	}
	if outcome.Survivor != nil {
		result.Info = append(result.Info, fmt.Sprintf("✓ Survivor: %d,%d", outcome.Survivor.X, outcome.Survivor.Y))
	}

	return result
}

// ValidateDir validates every track file in dir, in file name order
func ValidateDir(dir string) ([]ValidationResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read track directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, supported := range config.Extensions {
			if ext == supported {
				names = append(names, entry.Name())
				break
			}
		}
	}
	sort.Strings(names)

	results := make([]ValidationResult, 0, len(names))
	for _, name := range names {
		results = append(results, ValidateTrackFile(filepath.Join(dir, name)))
	}
	return results, nil
}
