package engine

// Segment represents the rail piece occupying a grid cell
type Segment string

const (
	Horizontal   Segment = "horizontal"
	Vertical     Segment = "vertical"
	CurveRight   Segment = "curve_right" // '/'
	CurveLeft    Segment = "curve_left"  // '\'
	Intersection Segment = "intersection"
	Empty        Segment = "empty"
)

// Direction represents a cart's current heading
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
	Up    Direction = "up"
	Down  Direction = "down"
)

// Turn represents the choice a cart makes at the next intersection it crosses
type Turn string

const (
	TurnLeft  Turn = "left"
	Straight  Turn = "straight"
	TurnRight Turn = "right"
)

// StopPolicy decides when a simulation is considered finished
type StopPolicy string

const (
	// StopAtLastCart keeps removing crashed carts until at most one is left
	StopAtLastCart StopPolicy = "last_cart"
	// StopAtFirstCrash finishes as soon as any collision is recorded
	StopAtFirstCrash StopPolicy = "first_crash"

	// Validation constants
	MaxTrackRows    = 500
	MaxTrackCols    = 500
	MaxTicksPerCall = 10000
	CrashMarker     = 'X'
)

// Position represents x,y grid coordinates (x = column, y = row)
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cart is the per-cart state; its position is the key it is stored under
type Cart struct {
	Direction Direction `json:"direction"`
	NextTurn  Turn      `json:"next_turn"`
}

// Crash records a collision and the tick it happened in
type Crash struct {
	Tick     int      `json:"tick"`
	Position Position `json:"position"`
}

// TrackConfig represents a track definition loaded from disk or the API
type TrackConfig struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Layout      []string   `json:"layout" yaml:"layout"`
	Policy      StopPolicy `json:"policy,omitempty" yaml:"policy,omitempty"`
	MaxTicks    int        `json:"max_ticks,omitempty" yaml:"max_ticks,omitempty"`
	Strict      bool       `json:"strict,omitempty" yaml:"strict,omitempty"`
}

// CartView is a cart flattened with its position for display and reporting
type CartView struct {
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Glyph     string    `json:"glyph"`
	Direction Direction `json:"direction"`
	NextTurn  Turn      `json:"next_turn"`
}

// StateView is a read-only projection of a simulation
type StateView struct {
	Tick      int        `json:"tick"`
	Rows      int        `json:"rows"`
	Cols      int        `json:"cols"`
	Policy    StopPolicy `json:"policy"`
	CartCount int        `json:"cart_count"`
	Carts     []CartView `json:"carts"`
	Crashed   []Position `json:"crashed"`
	Crashes   []Crash    `json:"crashes"`
	Snapshot  []string   `json:"snapshot"`
	Done      bool       `json:"done"`

	// Survivor is set whenever exactly one cart remains
	Survivor *CartView `json:"survivor,omitempty"`
}
