package engine

import (
	"encoding/json"
	"testing"
)

func TestSegmentConstants(t *testing.T) {
	tests := []struct {
		segment  Segment
		expected string
		glyph    rune
	}{
		{Horizontal, "horizontal", '-'},
		{Vertical, "vertical", '|'},
		{CurveRight, "curve_right", '/'},
		{CurveLeft, "curve_left", '\\'},
		{Intersection, "intersection", '+'},
		{Empty, "empty", ' '},
	}

	for _, test := range tests {
		if string(test.segment) != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, string(test.segment))
		}
		if test.segment.Glyph() != test.glyph {
			t.Errorf("%s: expected glyph %q, got %q", test.expected, test.glyph, test.segment.Glyph())
		}
	}
}

func TestDirectionGlyphs(t *testing.T) {
	tests := []struct {
		direction Direction
		glyph     rune
	}{
		{Up, '^'},
		{Down, 'v'},
		{Left, '<'},
		{Right, '>'},
	}

	for _, test := range tests {
		if got := test.direction.Glyph(); got != test.glyph {
			t.Errorf("%s: expected glyph %q, got %q", test.direction, test.glyph, got)
		}
		if !test.direction.Valid() {
			t.Errorf("%s should be valid", test.direction)
		}
	}

	if Direction("sideways").Valid() {
		t.Error("Unknown direction should not be valid")
	}
}

func TestValidationConstants(t *testing.T) {
	tests := []struct {
		name     string
		actual   int
		expected int
	}{
		{"MaxTrackRows", MaxTrackRows, 500},
		{"MaxTrackCols", MaxTrackCols, 500},
		{"MaxTicksPerCall", MaxTicksPerCall, 10000},
	}

	for _, test := range tests {
		if test.actual != test.expected {
			t.Errorf("%s: expected %d, got %d", test.name, test.expected, test.actual)
		}
	}
}

func TestCartJSONMarshaling(t *testing.T) {
	cart := Cart{Direction: Up, NextTurn: Straight}

	data, err := json.Marshal(cart)
	if err != nil {
		t.Fatalf("Failed to marshal cart: %v", err)
	}

	expected := `{"direction":"up","next_turn":"straight"}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, string(data))
	}

	var decoded Cart
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal cart: %v", err)
	}
	if decoded != cart {
		t.Errorf("Expected %+v, got %+v", cart, decoded)
	}
}

func TestStateViewJSONOmitsSurvivor(t *testing.T) {
	view := StateView{Tick: 3, Policy: StopAtLastCart}

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("Failed to marshal state view: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Failed to unmarshal state view: %v", err)
	}
	if _, ok := fields["survivor"]; ok {
		t.Error("Expected survivor to be omitted when nil")
	}
	if fields["policy"] != "last_cart" {
		t.Errorf("Expected policy last_cart, got %v", fields["policy"])
	}
}
