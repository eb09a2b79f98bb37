package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/mcp-training/railroad/game/engine"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTrackNotFound   = errors.New("track not found")
	ErrDerailed        = errors.New("cart derailed")
	ErrSessionFaulted  = errors.New("session faulted")
	ErrInvalidRequest  = errors.New("invalid request")
)

// SimulationService defines all simulation-related operations
type SimulationService interface {
	// Session Management
	CreateSession(ctx context.Context, opts CreateOptions) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Simulation
	Tick(ctx context.Context, sessionID string, count int) (*TickResult, error)
	Run(ctx context.Context, sessionID string, maxTicks int) (*RunResult, error)

	// State
	GetState(ctx context.Context, sessionID string) (*engine.StateView, error)
	GetCrashHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Tracks
	ListTracks(ctx context.Context) ([]*TrackInfo, error)
	LoadTrack(ctx context.Context, name string) (*engine.TrackConfig, error)
	SaveTrack(ctx context.Context, name string, track *engine.TrackConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, track *engine.TrackConfig, opts ...engine.Option) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// ConfigManager handles track definition loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.TrackConfig, error)
	ListConfigs() ([]*TrackInfo, error)
	GetDefault() *engine.TrackConfig
	SaveConfig(name string, track *engine.TrackConfig) error
}

// Session represents a running simulation
type Session struct {
	ID             string
	Sim            *engine.Simulation
	Config         *engine.TrackConfig
	TrackID        string
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// Fault is set once a cart derails; the simulation is not ticked again
	Fault error
}
