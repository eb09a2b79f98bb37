package engine

import "testing"

func TestAnalyzeTrack(t *testing.T) {
	tests := []struct {
		name string
		text string
		want TrackStats
	}{
		{
			name: "classic",
			text: DefaultTrackConfig().Text(),
			want: TrackStats{Rows: 7, Cols: 7, Carts: 9, Straights: 20, Curves: 8, Intersections: 2},
		},
		{
			name: "ragged",
			text: "->-<-\n-",
			want: TrackStats{Rows: 2, Cols: 5, Ragged: true, Carts: 2, Straights: 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, carts, err := ParseTrack(tt.text)
			if err != nil {
				t.Fatalf("ParseTrack failed: %v", err)
			}

			got := AnalyzeTrack(track, len(carts))
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestManhattanDistance(t *testing.T) {
	tests := []struct {
		from, to Position
		want     int
	}{
		{Position{0, 0}, Position{0, 0}, 0},
		{Position{0, 0}, Position{3, 4}, 7},
		{Position{5, 1}, Position{2, 3}, 5},
	}

	for _, tt := range tests {
		if got := ManhattanDistance(tt.from, tt.to); got != tt.want {
			t.Errorf("ManhattanDistance(%v, %v) = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNearestCrash(t *testing.T) {
	if _, _, ok := NearestCrash(nil, Position{}); ok {
		t.Error("Expected no crash without crash sites")
	}

	crashed := []Position{{X: 6, Y: 4}, {X: 2, Y: 0}, {X: 2, Y: 4}}
	nearest, distance, ok := NearestCrash(crashed, Position{X: 1, Y: 1})
	if !ok {
		t.Fatal("Expected a nearest crash")
	}
	if nearest != (Position{X: 2, Y: 0}) || distance != 2 {
		t.Errorf("Expected 2,0 at distance 2, got %v at %d", nearest, distance)
	}
}
