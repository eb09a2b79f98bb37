package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/railroad/game/engine"
	"github.com/wricardo/mcp-training/railroad/game/service"
)

var (
	ErrTrackNotFound = service.ErrTrackNotFound
	ErrInvalidTrack  = errors.New("invalid track")
)

// Extensions lists the track file formats, in lookup order
var Extensions = []string{".json", ".txt", ".yaml", ".yml"}

// Manager handles track definition loading and caching
type Manager struct {
	trackDir     string
	defaultTrack *engine.TrackConfig
	tracks       map[string]*engine.TrackConfig
	mu           sync.RWMutex
}

// NewManager creates a new track manager
func NewManager(trackDir string) (*Manager, error) {
	if _, err := os.Stat(trackDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("track directory does not exist: %s", trackDir)
	}

	m := &Manager{
		trackDir: trackDir,
		tracks:   make(map[string]*engine.TrackConfig),
	}

	if err := m.loadDefaultTrack(); err != nil {
		return nil, fmt.Errorf("failed to load default track: %w", err)
	}

	return m, nil
}

// LoadConfig loads a track by name. The name may carry its file extension;
// without one each supported extension is tried in turn.
func (m *Manager) LoadConfig(name string) (*engine.TrackConfig, error) {
	if !validTrackName(name) {
		return nil, ErrTrackNotFound
	}
	id := trackID(name)

	m.mu.RLock()
	if track, exists := m.tracks[id]; exists {
		m.mu.RUnlock()
		return track, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if track, exists := m.tracks[id]; exists {
		return track, nil
	}

	path, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	track, err := ReadTrackFile(path)
	if err != nil {
		return nil, err
	}

	m.tracks[id] = track
	return track, nil
}

// resolve finds the file backing a track name
func (m *Manager) resolve(name string) (string, error) {
	if ext := filepath.Ext(name); supported(ext) {
		path := filepath.Join(m.trackDir, name)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return "", ErrTrackNotFound
			}
			return "", fmt.Errorf("failed to stat track file: %w", err)
		}
		return path, nil
	}

	for _, ext := range Extensions {
		path := filepath.Join(m.trackDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrTrackNotFound
}

// ReadTrackFile parses and validates a single track file. The format is
// chosen by extension; .txt files hold the raw track text.
func ReadTrackFile(path string) (*engine.TrackConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTrackNotFound
		}
		return nil, fmt.Errorf("failed to read track file: %w", err)
	}

	var track engine.TrackConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &track); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidTrack, filepath.Base(path), err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &track); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidTrack, filepath.Base(path), err)
		}
	case ".txt":
		track = *engine.TrackConfigFromText(trackID(path), string(data))
	default:
		return nil, fmt.Errorf("%w: unsupported track format %q", ErrInvalidTrack, ext)
	}

	if err := engine.ValidateTrackConfig(&track); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrack, err)
	}
	return &track, nil
}

// ListConfigs returns information about all loadable tracks
func (m *Manager) ListConfigs() ([]*service.TrackInfo, error) {
	entries, err := os.ReadDir(m.trackDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read track directory: %w", err)
	}

	var tracks []*service.TrackInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || !supported(filepath.Ext(entry.Name())) {
			continue
		}

		id := trackID(entry.Name())
		if seen[id] {
			continue
		}

		track, err := m.LoadConfig(entry.Name())
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping invalid track")
			continue
		}
		seen[id] = true

		tracks = append(tracks, NewTrackInfo(entry.Name(), id, track))
	}

	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].TrackID < tracks[j].TrackID
	})
	return tracks, nil
}

// NewTrackInfo summarises a track for listings
func NewTrackInfo(filename, id string, track *engine.TrackConfig) *service.TrackInfo {
	info := &service.TrackInfo{
		Filename:    filename,
		TrackID:     id,
		Name:        track.Name,
		Description: track.Description,
		Rows:        len(track.Layout),
		Policy:      track.Policy,
	}
	if info.Policy == "" {
		info.Policy = engine.StopAtLastCart
	}
	if parsed, carts, err := engine.ParseTrack(track.Text()); err == nil {
		info.Cols = parsed.Cols()
		info.Carts = len(carts)
	}
	return info
}

// GetDefault returns the default track
func (m *Manager) GetDefault() *engine.TrackConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultTrack
}

// SetDefault sets the default track by name
func (m *Manager) SetDefault(name string) error {
	track, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultTrack = track
	return nil
}

// RefreshCache drops cached tracks so they are re-read from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.tracks = make(map[string]*engine.TrackConfig)
	m.mu.Unlock()

	return m.loadDefaultTrack()
}

// loadDefaultTrack prefers "classic", then the first valid file, then the
// built-in layout
func (m *Manager) loadDefaultTrack() error {
	track, err := m.LoadConfig("classic")
	if err != nil {
		tracks, listErr := m.ListConfigs()
		if listErr != nil || len(tracks) == 0 {
			m.setDefault(engine.DefaultTrackConfig())
			return nil
		}

		track, err = m.LoadConfig(tracks[0].Filename)
		if err != nil {
			m.setDefault(engine.DefaultTrackConfig())
			return nil
		}
	}

	m.setDefault(track)
	return nil
}

func (m *Manager) setDefault(track *engine.TrackConfig) {
	m.mu.Lock()
	m.defaultTrack = track
	m.mu.Unlock()
}

// SaveConfig validates a track and writes it to disk as JSON
func (m *Manager) SaveConfig(name string, track *engine.TrackConfig) error {
	if err := engine.ValidateTrackConfig(track); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTrack, err)
	}

	if !validTrackName(name) {
		return fmt.Errorf("%w: bad track name %q", ErrInvalidTrack, name)
	}
	id := trackID(name)

	data, err := json.MarshalIndent(track, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal track: %w", err)
	}

	path := filepath.Join(m.trackDir, id+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write track file: %w", err)
	}

	m.mu.Lock()
	m.tracks[id] = track
	m.mu.Unlock()

	return nil
}

// validTrackName accepts bare file names that stay inside the track directory
func validTrackName(name string) bool {
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	id := trackID(name)
	return id != "" && id != "." && id != ".."
}

// trackID strips directories and a supported extension from name
func trackID(name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); supported(ext) {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

func supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}
