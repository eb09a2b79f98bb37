package engine

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrTickLimit is returned by Run when the tick budget runs out first
	ErrTickLimit = errors.New("tick limit reached before simulation finished")

	// ErrUnknownPolicy is returned when a stop policy is neither last_cart nor first_crash
	ErrUnknownPolicy = errors.New("unknown stop policy")
)

// Option configures parsing and simulation behaviour
type Option func(*options)

type options struct {
	strict bool
	policy StopPolicy
}

// WithStrictGrid rejects ragged rows with ErrMalformedGrid
func WithStrictGrid() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithPolicy selects when the simulation counts as finished
func WithPolicy(policy StopPolicy) Option {
	return func(o *options) {
		if policy != "" {
			o.policy = policy
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{policy: StopAtLastCart}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Simulation holds a track and the carts moving on it
type Simulation struct {
	track   *Track
	carts   map[Position]Cart
	crashed map[Position]struct{}
	crashes []Crash
	ticks   int
	policy  StopPolicy
}

// FromText parses track text and creates a simulation at tick 0
func FromText(text string, opts ...Option) (*Simulation, error) {
	o := buildOptions(opts)
	if !o.policy.Valid() {
		return nil, fmt.Errorf("%w %q", ErrUnknownPolicy, o.policy)
	}

	track, carts, err := ParseTrack(text, opts...)
	if err != nil {
		return nil, err
	}

	return &Simulation{
		track:   track,
		carts:   carts,
		crashed: make(map[Position]struct{}),
		policy:  o.policy,
	}, nil
}

// Tick moves every live cart one cell in row-major order.
// It panics with a *Derailment if a cart runs onto an Empty cell.
func (s *Simulation) Tick() {
	s.ticks++
	s.advance(s.moveOrder())
}

// moveOrder snapshots live positions sorted by row, then column
func (s *Simulation) moveOrder() []Position {
	order := make([]Position, 0, len(s.carts))
	for pos := range s.carts {
		order = append(order, pos)
	}
	sort.Slice(order, func(i, j int) bool {
		return order[i].Before(order[j])
	})
	return order
}

// advance moves the carts found at each position of order, in sequence.
// Later carts see the positions already updated earlier in the same pass.
func (s *Simulation) advance(order []Position) {
	for _, pos := range order {
		s.moveCart(pos)
	}
}

// Done reports whether the configured stop policy is satisfied
func (s *Simulation) Done() bool {
	if len(s.carts) <= 1 {
		return true
	}
	return s.policy == StopAtFirstCrash && len(s.crashes) > 0
}

// Run ticks until Done. A positive maxTicks bounds the number of ticks
// executed by this call; ErrTickLimit is returned when it is hit.
func (s *Simulation) Run(maxTicks int) (int, error) {
	executed := 0
	for !s.Done() {
		if maxTicks > 0 && executed >= maxTicks {
			return executed, ErrTickLimit
		}
		s.Tick()
		executed++
	}
	return executed, nil
}

// Track returns the underlying track
func (s *Simulation) Track() *Track {
	return s.track
}

// Policy returns the configured stop policy
func (s *Simulation) Policy() StopPolicy {
	return s.policy
}

// Ticks returns the number of ticks executed so far
func (s *Simulation) Ticks() int {
	return s.ticks
}

// Rows returns the grid height
func (s *Simulation) Rows() int {
	return s.track.Rows()
}

// Cols returns the grid width
func (s *Simulation) Cols() int {
	return s.track.Cols()
}

// DisplaySize returns the number of lines a snapshot occupies
func (s *Simulation) DisplaySize() int {
	return s.track.Rows()
}

// CartCount returns the number of live carts
func (s *Simulation) CartCount() int {
	return len(s.carts)
}

// Carts returns a copy of the live carts keyed by position
func (s *Simulation) Carts() map[Position]Cart {
	carts := make(map[Position]Cart, len(s.carts))
	for pos, cart := range s.carts {
		carts[pos] = cart
	}
	return carts
}

// CartAt returns the live cart at p, if any
func (s *Simulation) CartAt(p Position) (Cart, bool) {
	cart, ok := s.carts[p]
	return cart, ok
}

// Crashed returns every position a collision happened at, in row-major order
func (s *Simulation) Crashed() []Position {
	crashed := make([]Position, 0, len(s.crashed))
	for pos := range s.crashed {
		crashed = append(crashed, pos)
	}
	sort.Slice(crashed, func(i, j int) bool {
		return crashed[i].Before(crashed[j])
	})
	return crashed
}

// IsCrashed reports whether a collision has been recorded at p
func (s *Simulation) IsCrashed(p Position) bool {
	_, ok := s.crashed[p]
	return ok
}

// Crashes returns the collision log in the order collisions happened
func (s *Simulation) Crashes() []Crash {
	crashes := make([]Crash, len(s.crashes))
	copy(crashes, s.crashes)
	return crashes
}

// Survivor returns the last cart when exactly one remains
func (s *Simulation) Survivor() (Position, Cart, bool) {
	if len(s.carts) != 1 {
		return Position{}, Cart{}, false
	}
	for pos, cart := range s.carts {
		return pos, cart, true
	}
	return Position{}, Cart{}, false
}

// View builds a serialisable projection of the current state
func (s *Simulation) View() *StateView {
	order := s.moveOrder()
	carts := make([]CartView, 0, len(order))
	for _, pos := range order {
		carts = append(carts, newCartView(pos, s.carts[pos]))
	}

	view := &StateView{
		Tick:      s.ticks,
		Rows:      s.Rows(),
		Cols:      s.Cols(),
		Policy:    s.policy,
		CartCount: len(carts),
		Carts:     carts,
		Crashed:   s.Crashed(),
		Crashes:   s.Crashes(),
		Snapshot:  s.Lines(),
		Done:      s.Done(),
	}
	if len(carts) == 1 {
		survivor := carts[0]
		view.Survivor = &survivor
	}
	return view
}

func newCartView(pos Position, cart Cart) CartView {
	return CartView{
		X:         pos.X,
		Y:         pos.Y,
		Glyph:     string(cart.Direction.Glyph()),
		Direction: cart.Direction,
		NextTurn:  cart.NextTurn,
	}
}
