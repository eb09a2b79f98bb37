package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateTrackConfig validates a track definition for correctness and playability
func ValidateTrackConfig(config *TrackConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if len(config.Layout) == 0 {
		return fmt.Errorf("config validation: layout must have at least one row")
	}
	if len(config.Layout) > MaxTrackRows {
		return fmt.Errorf("config validation: layout has %d rows, maximum is %d", len(config.Layout), MaxTrackRows)
	}
	for i, row := range config.Layout {
		if width := len([]rune(row)); width > MaxTrackCols {
			return fmt.Errorf("config validation: row %d has %d columns, maximum is %d", i, width, MaxTrackCols)
		}
	}

	if config.Policy != "" && !config.Policy.Valid() {
		return fmt.Errorf("config validation: policy must be %q or %q, got %q", StopAtLastCart, StopAtFirstCrash, config.Policy)
	}
	if config.MaxTicks < 0 {
		return fmt.Errorf("config validation: max_ticks must not be negative, got %d", config.MaxTicks)
	}

	_, carts, err := ParseTrack(config.Text(), config.parseOptions()...)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) && errors.Is(err, ErrInvalidTrackCharacter) {
			return fmt.Errorf("config validation: invalid character %q at row %d, col %d: %w", perr.Char, perr.Row, perr.Col, err)
		}
		return fmt.Errorf("config validation: %w", err)
	}
	if len(carts) == 0 {
		return fmt.Errorf("config validation: layout must contain at least one cart (>, <, ^ or v)")
	}

	return nil
}

// Text joins the layout rows back into track text
func (c *TrackConfig) Text() string {
	return strings.Join(c.Layout, "\n")
}

func (c *TrackConfig) parseOptions() []Option {
	var opts []Option
	if c.Strict {
		opts = append(opts, WithStrictGrid())
	}
	return opts
}

// NewSimulationFromConfig validates config and starts a simulation from it.
// Options given here override the config's own policy.
func NewSimulationFromConfig(config *TrackConfig, opts ...Option) (*Simulation, error) {
	if err := ValidateTrackConfig(config); err != nil {
		return nil, err
	}

	all := config.parseOptions()
	all = append(all, WithPolicy(config.Policy))
	all = append(all, opts...)
	return FromText(config.Text(), all...)
}

// TrackConfigFromText wraps raw track text in a config
func TrackConfigFromText(name, text string) *TrackConfig {
	return &TrackConfig{
		Name:        name,
		Description: "Track loaded from text",
		Layout:      splitRows(text),
	}
}

// DefaultTrackConfig returns the built-in track used when no track files exist
func DefaultTrackConfig() *TrackConfig {
	return &TrackConfig{
		Name:        "classic",
		Description: "Nine carts on a small figure of loops; one survives",
		Layout: []string{
			`/>-<\  `,
			`|   |  `,
			`| /<+-\`,
			`| | | v`,
			`\>+</ |`,
			`  |   ^`,
			`  \<->/`,
		},
		Policy: StopAtLastCart,
	}
}
