package engine

import "strings"

// Lines renders one string per grid row. A crash marker wins over a live
// cart, which wins over the rail underneath.
func (s *Simulation) Lines() []string {
	lines := make([]string, s.track.Rows())
	var b strings.Builder
	for y := range lines {
		b.Reset()
		for x := 0; x < s.track.Width(y); x++ {
			pos := Position{X: x, Y: y}
			if _, crashed := s.crashed[pos]; crashed {
				b.WriteRune(CrashMarker)
			} else if cart, ok := s.carts[pos]; ok {
				b.WriteRune(cart.Direction.Glyph())
			} else {
				b.WriteRune(s.track.At(pos).Glyph())
			}
		}
		lines[y] = b.String()
	}
	return lines
}

// String renders the snapshot with a line break after every row
func (s *Simulation) String() string {
	var b strings.Builder
	for _, line := range s.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
