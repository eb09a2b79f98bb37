package engine

import "fmt"

// Derailment is the panic value raised when a cart leaves the rails.
// A well-formed track never produces one.
type Derailment struct {
	Tick      int
	From      Position
	To        Position
	Direction Direction
}

func (d *Derailment) Error() string {
	return fmt.Sprintf("cart derailed on tick %d moving %s from (%d,%d) to (%d,%d)",
		d.Tick, d.Direction, d.From.X, d.From.Y, d.To.X, d.To.Y)
}

// Step returns the position one cell away in the given direction
func (p Position) Step(d Direction) Position {
	switch d {
	case Left:
		p.X--
	case Right:
		p.X++
	case Up:
		p.Y--
	case Down:
		p.Y++
	}
	return p
}

// Before reports whether p comes before o in row-major order
func (p Position) Before(o Position) bool {
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.X < o.X
}

// CounterClockwise rotates the heading a quarter turn to the left
func (d Direction) CounterClockwise() Direction {
	switch d {
	case Left:
		return Down
	case Down:
		return Right
	case Right:
		return Up
	case Up:
		return Left
	}
	return d
}

// Clockwise rotates the heading a quarter turn to the right
func (d Direction) Clockwise() Direction {
	switch d {
	case Left:
		return Up
	case Up:
		return Right
	case Right:
		return Down
	case Down:
		return Left
	}
	return d
}

// Apply returns the heading after taking turn t at an intersection
func (d Direction) Apply(t Turn) Direction {
	switch t {
	case TurnLeft:
		return d.CounterClockwise()
	case TurnRight:
		return d.Clockwise()
	}
	return d
}

// Glyph returns the character used to draw a cart with this heading
func (d Direction) Glyph() rune {
	switch d {
	case Up:
		return '^'
	case Down:
		return 'v'
	case Left:
		return '<'
	case Right:
		return '>'
	}
	return '?'
}

// Valid reports whether d is one of the four headings
func (d Direction) Valid() bool {
	switch d {
	case Left, Right, Up, Down:
		return true
	}
	return false
}

// Valid reports whether p is a known stop policy
func (p StopPolicy) Valid() bool {
	switch p {
	case StopAtLastCart, StopAtFirstCrash:
		return true
	}
	return false
}

// Next advances the intersection cycle Left -> Straight -> Right -> Left
func (t Turn) Next() Turn {
	switch t {
	case TurnLeft:
		return Straight
	case Straight:
		return TurnRight
	default:
		return TurnLeft
	}
}

// Glyph returns the track character for the segment
func (s Segment) Glyph() rune {
	switch s {
	case Horizontal:
		return '-'
	case Vertical:
		return '|'
	case CurveRight:
		return '/'
	case CurveLeft:
		return '\\'
	case Intersection:
		return '+'
	}
	return ' '
}

// Enter returns the cart's state after it moves onto a segment.
// Callers must reject Empty before calling.
func (c Cart) Enter(s Segment) Cart {
	switch s {
	case CurveRight:
		switch c.Direction {
		case Up:
			c.Direction = Right
		case Right:
			c.Direction = Up
		case Down:
			c.Direction = Left
		case Left:
			c.Direction = Down
		}
	case CurveLeft:
		switch c.Direction {
		case Up:
			c.Direction = Left
		case Left:
			c.Direction = Up
		case Down:
			c.Direction = Right
		case Right:
			c.Direction = Down
		}
	case Intersection:
		c.Direction = c.Direction.Apply(c.NextTurn)
		c.NextTurn = c.NextTurn.Next()
	}
	return c
}

// moveCart advances the cart at from by one cell, resolving a collision
// against the live state if the target cell is occupied
func (s *Simulation) moveCart(from Position) {
	cart, ok := s.carts[from]
	if !ok {
		// Removed earlier in this tick
		return
	}

	to := from.Step(cart.Direction)
	segment := s.track.At(to)
	if segment == Empty {
		panic(&Derailment{Tick: s.ticks, From: from, To: to, Direction: cart.Direction})
	}
	cart = cart.Enter(segment)

	delete(s.carts, from)
	if _, occupied := s.carts[to]; occupied {
		delete(s.carts, to)
		s.crashed[to] = struct{}{}
		s.crashes = append(s.crashes, Crash{Tick: s.ticks, Position: to})
		return
	}
	s.carts[to] = cart
}
