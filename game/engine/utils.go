package engine

// TrackStats summarises the composition of a track
type TrackStats struct {
	Rows          int  `json:"rows"`
	Cols          int  `json:"cols"`
	Ragged        bool `json:"ragged"`
	Carts         int  `json:"carts"`
	Straights     int  `json:"straights"`
	Curves        int  `json:"curves"`
	Intersections int  `json:"intersections"`
}

// AnalyzeTrack counts the pieces and carts of a track
func AnalyzeTrack(track *Track, carts int) TrackStats {
	stats := TrackStats{
		Rows:          track.Rows(),
		Cols:          track.Cols(),
		Carts:         carts,
		Straights:     track.Count(Horizontal) + track.Count(Vertical),
		Curves:        track.Count(CurveRight) + track.Count(CurveLeft),
		Intersections: track.Count(Intersection),
	}
	for y := 0; y < track.Rows(); y++ {
		if track.Width(y) != track.Cols() {
			stats.Ragged = true
			break
		}
	}
	return stats
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// NearestCrash returns the crash site in crashed closest to p
func NearestCrash(crashed []Position, p Position) (Position, int, bool) {
	minDistance := -1
	var nearest Position
	for _, pos := range crashed {
		distance := ManhattanDistance(p, pos)
		if minDistance == -1 || distance < minDistance {
			minDistance = distance
			nearest = pos
		}
	}
	return nearest, minDistance, minDistance != -1
}
