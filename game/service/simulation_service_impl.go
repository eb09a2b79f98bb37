package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/railroad/game/engine"
)

// simulationServiceImpl implements the SimulationService interface
type simulationServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager

	// mu serialises every session operation; reads stamp the access time too
	mu sync.Mutex
}

// NewSimulationService creates a new simulation service instance
func NewSimulationService(sessions SessionManager, configs ConfigManager) SimulationService {
	return &simulationServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
}

// CreateSession creates a new session from a named track or inline text
func (s *simulationServiceImpl) CreateSession(ctx context.Context, opts CreateOptions) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch opts.Policy {
	case "", engine.StopAtLastCart, engine.StopAtFirstCrash:
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidRequest, opts.Policy)
	}

	track, trackID, err := s.resolveTrack(opts)
	if err != nil {
		return nil, err
	}

	var simOpts []engine.Option
	if opts.Policy != "" {
		simOpts = append(simOpts, engine.WithPolicy(opts.Policy))
	}

	// Let session manager generate a 4-character ID
	session, err := s.sessions.Create("", track, simOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.TrackID = trackID

	log.Info().
		Str("session", session.ID).
		Str("track", trackID).
		Str("policy", string(session.Sim.Policy())).
		Int("carts", session.Sim.CartCount()).
		Msg("session created")

	return newSessionInfo(session), nil
}

// resolveTrack picks the inline text, the named track or the default track
func (s *simulationServiceImpl) resolveTrack(opts CreateOptions) (*engine.TrackConfig, string, error) {
	if opts.Text != "" {
		track := engine.TrackConfigFromText("inline", opts.Text)
		track.Strict = opts.Strict
		if err := engine.ValidateTrackConfig(track); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return track, "inline", nil
	}

	if opts.Track == "" {
		track := s.configs.GetDefault()
		return track, s.getTrackID(track.Name), nil
	}

	track, err := s.configs.LoadConfig(opts.Track)
	if err != nil {
		if errors.Is(err, ErrTrackNotFound) {
			// Provide helpful error message with available options
			available, listErr := s.configs.ListConfigs()
			if listErr == nil && len(available) > 0 {
				var ids []string
				for _, info := range available {
					ids = append(ids, info.TrackID)
				}
				return nil, "", fmt.Errorf("%w: '%s'. Available tracks: %v", ErrTrackNotFound, opts.Track, ids)
			}
			return nil, "", fmt.Errorf("%w: '%s'. Use /api/tracks to list available tracks", ErrTrackNotFound, opts.Track)
		}
		return nil, "", fmt.Errorf("failed to load track %s: %w", opts.Track, err)
	}
	if opts.Strict && !track.Strict {
		strict := *track
		strict.Strict = true
		if err := engine.ValidateTrackConfig(&strict); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		track = &strict
	}
	return track, opts.Track, nil
}

// getTrackID returns the track_id for a display name, for consistent API responses
func (s *simulationServiceImpl) getTrackID(name string) string {
	available, err := s.configs.ListConfigs()
	if err == nil {
		for _, info := range available {
			if info.Name == name {
				return info.TrackID
			}
		}
	}
	if name == "" {
		return "default"
	}
	return name
}

// GetSession retrieves session information
func (s *simulationServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return newSessionInfo(session), nil
}

// ListSessions returns all active sessions
func (s *simulationServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, newSessionInfo(session))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *simulationServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	log.Info().Str("session", sessionID).Msg("session deleted")
	return nil
}

// Tick advances a session by up to count ticks, stopping early once done.
// When ctx is cancelled or a cart derails part way, the ticks already made
// are reported in the returned result alongside the error.
func (s *simulationServiceImpl) Tick(ctx context.Context, sessionID string, count int) (*TickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getLiveSession(sessionID)
	if err != nil {
		return nil, err
	}

	if count <= 0 {
		count = 1
	}
	result := &TickResult{RequestedTicks: count}
	if count > engine.MaxTicksPerCall {
		count = engine.MaxTicksPerCall
		result.Truncated = true
		result.Limit = engine.MaxTicksPerCall
	}

	before := len(session.Sim.Crashes())
	var tickErr error
	for i := 0; i < count && !session.Sim.Done(); i++ {
		if tickErr = ctx.Err(); tickErr != nil {
			break
		}
		if tickErr = safeTick(session); tickErr != nil {
			break
		}
		result.TicksExecuted++
	}

	result.NewCrashes = session.Sim.Crashes()[before:]
	result.Done = session.Sim.Done()
	result.State = session.Sim.View()
	return result, tickErr
}

// Run ticks a session until its stop policy is satisfied. maxTicks bounds
// this call; zero falls back to the track's max_ticks, then MaxTicksPerCall.
func (s *simulationServiceImpl) Run(ctx context.Context, sessionID string, maxTicks int) (*RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getLiveSession(sessionID)
	if err != nil {
		return nil, err
	}

	limit := maxTicks
	if limit <= 0 {
		limit = session.Config.MaxTicks
	}
	if limit <= 0 || limit > engine.MaxTicksPerCall {
		limit = engine.MaxTicksPerCall
	}

	result := &RunResult{Limit: limit}
	before := len(session.Sim.Crashes())

	for !session.Sim.Done() {
		if result.TicksExecuted >= limit {
			result.StopReasonCode = StopTickLimit
			result.StoppedReason = fmt.Sprintf("stopped after %d ticks with %d carts left", limit, session.Sim.CartCount())
			break
		}
		if err := ctx.Err(); err != nil {
			result.StopReasonCode = StopCancelled
			result.StoppedReason = err.Error()
			break
		}
		if err := safeTick(session); err != nil {
			result.StopReasonCode = StopDerailed
			result.StoppedReason = session.Fault.Error()
			break
		}
		result.TicksExecuted++
	}
	if result.StopReasonCode == "" {
		result.StopReasonCode = StopDone
	}

	crashes := session.Sim.Crashes()
	result.NewCrashes = crashes[before:]
	if len(crashes) > 0 {
		first := crashes[0]
		result.FirstCrash = &first
	}
	result.State = session.Sim.View()
	result.Survivor = result.State.Survivor

	log.Info().
		Str("session", sessionID).
		Int("ticks", result.TicksExecuted).
		Str("stop", result.StopReasonCode).
		Int("carts", session.Sim.CartCount()).
		Msg("run finished")

	return result, nil
}

// safeTick advances the simulation one tick and turns a derailment into
// a session fault
func safeTick(session *Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			derailment, ok := r.(*engine.Derailment)
			if !ok {
				panic(r)
			}
			session.Fault = derailment
			err = fmt.Errorf("%w: %w", ErrDerailed, derailment)
			log.Error().
				Str("session", session.ID).
				Int("tick", derailment.Tick).
				Int("x", derailment.To.X).
				Int("y", derailment.To.Y).
				Msg("cart derailed")
		}
	}()

	session.Sim.Tick()
	return nil
}

// GetState retrieves the current simulation state
func (s *simulationServiceImpl) GetState(ctx context.Context, sessionID string) (*engine.StateView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Sim.View(), nil
}

// GetCrashHistory returns a page of the crash log
func (s *simulationServiceImpl) GetCrashHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	history := session.Sim.Crashes()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	crashes := []engine.Crash{}
	if strings.EqualFold(opts.Order, "desc") {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			crashes = append(crashes, history[i])
		}
	} else if start < total {
		crashes = append(crashes, history[start:end]...)
	}

	return &HistoryResponse{
		Crashes:      crashes,
		TotalCrashes: total,
		Page:         opts.Page,
		PageSize:     opts.Limit,
		TotalPages:   totalPages,
		HasNext:      opts.Page < totalPages,
		HasPrevious:  opts.Page > 1,
	}, nil
}

// ListTracks returns available track definitions
func (s *simulationServiceImpl) ListTracks(ctx context.Context) ([]*TrackInfo, error) {
	return s.configs.ListConfigs()
}

// LoadTrack loads a specific track definition
func (s *simulationServiceImpl) LoadTrack(ctx context.Context, name string) (*engine.TrackConfig, error) {
	return s.configs.LoadConfig(name)
}

// SaveTrack saves a track definition to disk
func (s *simulationServiceImpl) SaveTrack(ctx context.Context, name string, track *engine.TrackConfig) error {
	return s.configs.SaveConfig(name, track)
}

// getSession looks up a session and marks it accessed
func (s *simulationServiceImpl) getSession(sessionID string) (*Session, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return session, nil
}

// getLiveSession is getSession for operations that advance the simulation
func (s *simulationServiceImpl) getLiveSession(sessionID string) (*Session, error) {
	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Fault != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionFaulted, session.Fault)
	}
	return session, nil
}

func newSessionInfo(session *Session) *SessionInfo {
	info := &SessionInfo{
		ID:             session.ID,
		TrackID:        session.TrackID,
		Policy:         session.Sim.Policy(),
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		State:          session.Sim.View(),
		Track:          session.Config,
	}
	if session.Fault != nil {
		info.Fault = session.Fault.Error()
	}
	return info
}
