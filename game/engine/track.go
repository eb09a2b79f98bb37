package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTrackCharacter = errors.New("invalid track character")
	ErrMalformedGrid         = errors.New("malformed grid")
)

// ParseError reports where in the input text parsing failed
type ParseError struct {
	Err  error // ErrInvalidTrackCharacter or ErrMalformedGrid
	Row  int
	Col  int
	Char rune

	// Width and Expected are set for ErrMalformedGrid
	Width    int
	Expected int
}

func (e *ParseError) Error() string {
	if errors.Is(e.Err, ErrMalformedGrid) {
		return fmt.Sprintf("%v: row %d has width %d, expected %d", e.Err, e.Row, e.Width, e.Expected)
	}
	return fmt.Sprintf("%v %q at (%d,%d)", e.Err, e.Char, e.Col, e.Row)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Track is the immutable rail grid, indexed [row][col]
type Track struct {
	grid [][]Segment
	cols int
}

// ParseTrack builds a Track and the initial cart set from track text.
// Rows shorter than the widest row are padded with Empty unless
// WithStrictGrid is given.
func ParseTrack(text string, opts ...Option) (*Track, map[Position]Cart, error) {
	o := buildOptions(opts)
	rows := splitRows(text)

	track := &Track{grid: make([][]Segment, len(rows))}
	carts := make(map[Position]Cart)

	for y, row := range rows {
		chars := []rune(row)
		if o.strict && y > 0 && len(chars) != track.cols {
			return nil, nil, &ParseError{Err: ErrMalformedGrid, Row: y, Width: len(chars), Expected: track.cols}
		}

		line := make([]Segment, len(chars))
		for x, char := range chars {
			segment, cart, isCart, ok := decodeCell(char)
			if !ok {
				return nil, nil, &ParseError{Err: ErrInvalidTrackCharacter, Row: y, Col: x, Char: char}
			}
			line[x] = segment
			if isCart {
				carts[Position{X: x, Y: y}] = cart
			}
		}

		track.grid[y] = line
		if len(line) > track.cols {
			track.cols = len(line)
		}
	}

	return track, carts, nil
}

// decodeCell maps one input character to its segment and optional cart
func decodeCell(char rune) (Segment, Cart, bool, bool) {
	switch char {
	case ' ':
		return Empty, Cart{}, false, true
	case '-':
		return Horizontal, Cart{}, false, true
	case '|':
		return Vertical, Cart{}, false, true
	case '/':
		return CurveRight, Cart{}, false, true
	case '\\':
		return CurveLeft, Cart{}, false, true
	case '+':
		return Intersection, Cart{}, false, true
	case '>':
		return Horizontal, Cart{Direction: Right, NextTurn: TurnLeft}, true, true
	case '<':
		return Horizontal, Cart{Direction: Left, NextTurn: TurnLeft}, true, true
	case '^':
		return Vertical, Cart{Direction: Up, NextTurn: TurnLeft}, true, true
	case 'v':
		return Vertical, Cart{Direction: Down, NextTurn: TurnLeft}, true, true
	}
	return Empty, Cart{}, false, false
}

// splitRows splits on line breaks. A terminating line break ends the last
// row instead of opening an empty one.
func splitRows(text string) []string {
	if text == "" {
		return nil
	}
	rows := strings.Split(text, "\n")
	if rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}
	for i := range rows {
		rows[i] = strings.TrimSuffix(rows[i], "\r")
	}
	return rows
}

// Rows returns the number of grid rows
func (t *Track) Rows() int {
	return len(t.grid)
}

// Cols returns the width of the widest row
func (t *Track) Cols() int {
	return t.cols
}

// Width returns the parsed width of a single row
func (t *Track) Width(row int) int {
	if row < 0 || row >= len(t.grid) {
		return 0
	}
	return len(t.grid[row])
}

// At returns the segment at p; anything outside a row is Empty
func (t *Track) At(p Position) Segment {
	if p.Y < 0 || p.Y >= len(t.grid) {
		return Empty
	}
	row := t.grid[p.Y]
	if p.X < 0 || p.X >= len(row) {
		return Empty
	}
	return row[p.X]
}

// Count returns how many cells hold the given segment
func (t *Track) Count(segment Segment) int {
	count := 0
	for _, row := range t.grid {
		for _, cell := range row {
			if cell == segment {
				count++
			}
		}
	}
	return count
}
