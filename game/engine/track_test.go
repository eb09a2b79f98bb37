package engine

import (
	"errors"
	"testing"
)

func TestParseTrack_SegmentMapping(t *testing.T) {
	track, carts, err := ParseTrack(` -|/\+`)
	if err != nil {
		t.Fatalf("Failed to parse track: %v", err)
	}

	expected := []Segment{Empty, Horizontal, Vertical, CurveRight, CurveLeft, Intersection}
	for x, segment := range expected {
		if got := track.At(Position{X: x, Y: 0}); got != segment {
			t.Errorf("At(%d,0): expected %s, got %s", x, segment, got)
		}
	}
	if len(carts) != 0 {
		t.Errorf("Expected no carts, got %d", len(carts))
	}
}

func TestParseTrack_CartGlyphs(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		direction Direction
		segment   Segment
	}{
		{"right", "-->-", Right, Horizontal},
		{"left", "--<-", Left, Horizontal},
		{"up", "--^-", Up, Vertical},
		{"down", "--v-", Down, Vertical},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			track, carts, err := ParseTrack(test.text)
			if err != nil {
				t.Fatalf("Failed to parse track: %v", err)
			}

			pos := Position{X: 2, Y: 0}
			cart, ok := carts[pos]
			if !ok {
				t.Fatalf("Expected cart at %+v, got %v", pos, carts)
			}
			if cart.Direction != test.direction {
				t.Errorf("Expected direction %s, got %s", test.direction, cart.Direction)
			}
			if cart.NextTurn != TurnLeft {
				t.Errorf("Expected next turn left, got %s", cart.NextTurn)
			}
			if got := track.At(pos); got != test.segment {
				t.Errorf("Expected implied segment %s, got %s", test.segment, got)
			}
		})
	}
}

func TestParseTrack_InvalidCharacter(t *testing.T) {
	_, _, err := ParseTrack("/--\\\n|  #\n\\--/")
	if err == nil {
		t.Fatal("Expected error for invalid character")
	}
	if !errors.Is(err, ErrInvalidTrackCharacter) {
		t.Errorf("Expected ErrInvalidTrackCharacter, got %v", err)
	}

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *ParseError, got %T", err)
	}
	if perr.Row != 1 || perr.Col != 3 || perr.Char != '#' {
		t.Errorf("Expected '#' at row 1 col 3, got %q at row %d col %d", perr.Char, perr.Row, perr.Col)
	}
}

func TestParseTrack_RaggedRows(t *testing.T) {
	track, _, err := ParseTrack("/----\\\n|\n\\----/")
	if err != nil {
		t.Fatalf("Ragged rows should parse by default: %v", err)
	}

	if track.Rows() != 3 {
		t.Errorf("Expected 3 rows, got %d", track.Rows())
	}
	if track.Cols() != 6 {
		t.Errorf("Expected 6 columns, got %d", track.Cols())
	}
	if track.Width(1) != 1 {
		t.Errorf("Expected row 1 width 1, got %d", track.Width(1))
	}
	if got := track.At(Position{X: 5, Y: 1}); got != Empty {
		t.Errorf("Expected missing column to read as empty, got %s", got)
	}
}

func TestParseTrack_StrictGrid(t *testing.T) {
	_, _, err := ParseTrack("/----\\\n|\n\\----/", WithStrictGrid())
	if !errors.Is(err, ErrMalformedGrid) {
		t.Fatalf("Expected ErrMalformedGrid, got %v", err)
	}

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *ParseError, got %T", err)
	}
	if perr.Row != 1 || perr.Width != 1 || perr.Expected != 6 {
		t.Errorf("Unexpected error details: %+v", perr)
	}

	if _, _, err := ParseTrack("/--\\\n\\--/", WithStrictGrid()); err != nil {
		t.Errorf("Rectangular grid should pass strict mode: %v", err)
	}
}

func TestParseTrack_LineEndings(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no trailing newline", "/--\\\n\\--/"},
		{"trailing newline", "/--\\\n\\--/\n"},
		{"crlf", "/--\\\r\n\\--/\r\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			track, _, err := ParseTrack(test.text, WithStrictGrid())
			if err != nil {
				t.Fatalf("Failed to parse: %v", err)
			}
			if track.Rows() != 2 || track.Cols() != 4 {
				t.Errorf("Expected 2x4 grid, got %dx%d", track.Rows(), track.Cols())
			}
		})
	}
}

func TestParseTrack_Empty(t *testing.T) {
	track, carts, err := ParseTrack("")
	if err != nil {
		t.Fatalf("Empty text should parse: %v", err)
	}
	if track.Rows() != 0 || track.Cols() != 0 || len(carts) != 0 {
		t.Errorf("Expected empty track, got %dx%d with %d carts", track.Rows(), track.Cols(), len(carts))
	}
}

func TestTrack_AtOutOfBounds(t *testing.T) {
	track, _, err := ParseTrack("+")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	for _, pos := range []Position{{-1, 0}, {0, -1}, {1, 0}, {0, 1}} {
		if got := track.At(pos); got != Empty {
			t.Errorf("At(%+v): expected empty, got %s", pos, got)
		}
	}
}

func TestTrack_Count(t *testing.T) {
	track, _, err := ParseTrack("/-+-\\\n|   |\n\\->-/")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if got := track.Count(Horizontal); got != 5 {
		t.Errorf("Expected 5 horizontal pieces (cart included), got %d", got)
	}
	if got := track.Count(Intersection); got != 1 {
		t.Errorf("Expected 1 intersection, got %d", got)
	}
	if got := track.Count(CurveRight) + track.Count(CurveLeft); got != 4 {
		t.Errorf("Expected 4 curves, got %d", got)
	}
}
