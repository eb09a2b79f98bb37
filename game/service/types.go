package service

import (
	"time"

	"github.com/wricardo/mcp-training/railroad/game/engine"
)

// Stop reason codes reported by Run
const (
	StopDone      = "done"
	StopTickLimit = "tick_limit"
	StopDerailed  = "derailed"
	StopCancelled = "cancelled"
)

// CreateOptions selects the track and policy for a new session.
// Text, when set, is parsed as an inline track and Track is ignored.
type CreateOptions struct {
	Track  string            `json:"track,omitempty"`
	Policy engine.StopPolicy `json:"policy,omitempty"`
	Text   string            `json:"text,omitempty"`
	Strict bool              `json:"strict,omitempty"`
}

// SessionInfo provides information about a simulation session
type SessionInfo struct {
	ID             string              `json:"id"`
	TrackID        string              `json:"track_id"`
	Policy         engine.StopPolicy   `json:"policy"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	Fault          string              `json:"fault,omitempty"`
	State          *engine.StateView   `json:"state"`
	Track          *engine.TrackConfig `json:"track"`
}

// TickResult contains the result of a tick call
type TickResult struct {
	TicksExecuted  int               `json:"ticks_executed"`
	RequestedTicks int               `json:"requested_ticks"`
	Truncated      bool              `json:"truncated,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	NewCrashes     []engine.Crash    `json:"new_crashes"`
	Done           bool              `json:"done"`
	State          *engine.StateView `json:"state"`
}

// RunResult contains the result of running a session to completion
type RunResult struct {
	TicksExecuted  int               `json:"ticks_executed"`
	Limit          int               `json:"limit"`
	StopReasonCode string            `json:"stop_reason_code"` // done|tick_limit|derailed|cancelled
	StoppedReason  string            `json:"stopped_reason,omitempty"`
	Survivor       *engine.CartView  `json:"survivor,omitempty"`
	FirstCrash     *engine.Crash     `json:"first_crash,omitempty"`
	NewCrashes     []engine.Crash    `json:"new_crashes"`
	State          *engine.StateView `json:"state"`
}

// HistoryOptions configures crash history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains a page of the crash log
type HistoryResponse struct {
	Crashes      []engine.Crash `json:"crashes"`
	TotalCrashes int            `json:"total_crashes"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	TotalPages   int            `json:"total_pages"`
	HasNext      bool           `json:"has_next"`
	HasPrevious  bool           `json:"has_previous"`
}

// TrackInfo provides information about a track file
type TrackInfo struct {
	Filename    string            `json:"filename"`
	TrackID     string            `json:"track_id"` // The identifier to use for session creation
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Rows        int               `json:"rows"`
	Cols        int               `json:"cols"`
	Carts       int               `json:"carts"`
	Policy      engine.StopPolicy `json:"policy"`
}
