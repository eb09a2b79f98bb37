package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/wricardo/mcp-training/railroad/game/engine"
)

func createTestTrackDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "track-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	return dir
}

func createValidTrack() *engine.TrackConfig {
	return &engine.TrackConfig{
		Name:        "Test Track",
		Description: "Test track",
		Layout: []string{
			"/->-\\",
			"|   |",
			"\\-<-/",
		},
	}
}

func writeTrackFile(t *testing.T, dir, name string, track *engine.TrackConfig) {
	data, err := json.MarshalIndent(track, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal track: %v", err)
	}

	filename := name
	if filepath.Ext(filename) == "" {
		filename = name + ".json"
	}

	writeRawFile(t, dir, filename, string(data))
}

func writeRawFile(t *testing.T, dir, filename, content string) {
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", filename, err)
	}
}

const yamlTrack = `name: Yaml Loop
description: Two carts chasing on one loop
policy: first_crash
layout:
  - '/>--\'
  - '|   |'
  - '\--</'
`

const textTrack = "/->-\\        \n" +
	"|   |  /----\\\n" +
	"| /-+--+-\\  |\n" +
	"| | |  | v  |\n" +
	"\\-+-/  \\-+--/\n" +
	"  \\------/   \n"

func TestNewManager(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		dir := createTestTrackDir(t)
		defer os.RemoveAll(dir)

		classic := createValidTrack()
		classic.Name = "Classic"
		writeTrackFile(t, dir, "classic", classic)

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if manager.GetDefault().Name != "Classic" {
			t.Errorf("Expected classic as default, got %s", manager.GetDefault().Name)
		}
	})

	t.Run("non-existent directory", func(t *testing.T) {
		_, err := NewManager("/non/existent/path")
		if err == nil {
			t.Error("Expected error for non-existent directory")
		}
	})

	t.Run("empty directory falls back to built-in track", func(t *testing.T) {
		dir := createTestTrackDir(t)
		defer os.RemoveAll(dir)

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("NewManager should succeed without track files, got error: %v", err)
		}

		defaultTrack := manager.GetDefault()
		if defaultTrack == nil || defaultTrack.Name != "classic" {
			t.Errorf("Expected built-in classic track, got %+v", defaultTrack)
		}
	})

	t.Run("first valid track when classic is missing", func(t *testing.T) {
		dir := createTestTrackDir(t)
		defer os.RemoveAll(dir)

		other := createValidTrack()
		other.Name = "Alpha"
		writeTrackFile(t, dir, "alpha", other)

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if manager.GetDefault().Name != "Alpha" {
			t.Errorf("Expected Alpha as default, got %s", manager.GetDefault().Name)
		}
	})
}

func TestManager_LoadConfig(t *testing.T) {
	dir := createTestTrackDir(t)
	defer os.RemoveAll(dir)

	writeTrackFile(t, dir, "classic", createValidTrack())
	writeRawFile(t, dir, "chase.yaml", yamlTrack)
	writeRawFile(t, dir, "aoc.txt", textTrack)
	writeRawFile(t, dir, "broken.json", `{"name": "broken", "layout": [`)
	writeRawFile(t, dir, "nocarts.json", `{"name": "nocarts", "layout": ["/-\\", "\\-/"]}`)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	tests := []struct {
		name       string
		trackName  string
		wantName   string
		wantPolicy engine.StopPolicy
		wantErr    error
	}{
		{"json by name", "classic", "Test Track", "", nil},
		{"json with extension", "classic.json", "Test Track", "", nil},
		{"yaml by name", "chase", "Yaml Loop", engine.StopAtFirstCrash, nil},
		{"yaml with extension", "chase.yaml", "Yaml Loop", engine.StopAtFirstCrash, nil},
		{"raw text", "aoc", "aoc", "", nil},
		{"missing", "nope", "", "", ErrTrackNotFound},
		{"missing with extension", "nope.yml", "", "", ErrTrackNotFound},
		{"malformed json", "broken", "", "", ErrInvalidTrack},
		{"failed validation", "nocarts", "", "", ErrInvalidTrack},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			track, err := manager.LoadConfig(test.trackName)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Errorf("Expected %v, got %v", test.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if track.Name != test.wantName {
				t.Errorf("Expected name %q, got %q", test.wantName, track.Name)
			}
			if track.Policy != test.wantPolicy {
				t.Errorf("Expected policy %q, got %q", test.wantPolicy, track.Policy)
			}
		})
	}
}

func TestManager_LoadedTracksRun(t *testing.T) {
	dir := createTestTrackDir(t)
	defer os.RemoveAll(dir)

	writeRawFile(t, dir, "aoc.txt", textTrack)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	track, err := manager.LoadConfig("aoc")
	if err != nil {
		t.Fatalf("Failed to load track: %v", err)
	}

	sim, err := engine.NewSimulationFromConfig(track, engine.WithPolicy(engine.StopAtFirstCrash))
	if err != nil {
		t.Fatalf("Failed to create simulation: %v", err)
	}
	sim.Run(0)

	crashed := sim.Crashed()
	if len(crashed) != 1 || crashed[0] != (engine.Position{X: 7, Y: 3}) {
		t.Errorf("Expected first crash at 7,3, got %v", crashed)
	}
}

func TestManager_ListConfigs(t *testing.T) {
	dir := createTestTrackDir(t)
	defer os.RemoveAll(dir)

	writeTrackFile(t, dir, "classic", createValidTrack())
	writeRawFile(t, dir, "chase.yml", yamlTrack)
	writeRawFile(t, dir, "aoc.txt", textTrack)
	writeRawFile(t, dir, "broken.json", "not json")
	writeRawFile(t, dir, "README.md", "# tracks")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	tracks, err := manager.ListConfigs()
	if err != nil {
		t.Fatalf("Failed to list tracks: %v", err)
	}

	if len(tracks) != 3 {
		t.Fatalf("Expected 3 valid tracks, got %d", len(tracks))
	}

	expectedIDs := []string{"aoc", "chase", "classic"}
	for i, id := range expectedIDs {
		if tracks[i].TrackID != id {
			t.Errorf("Track %d: expected id %s, got %s", i, id, tracks[i].TrackID)
		}
	}

	aoc := tracks[0]
	if aoc.Filename != "aoc.txt" || aoc.Rows != 6 || aoc.Cols != 13 || aoc.Carts != 2 {
		t.Errorf("Unexpected aoc info: %+v", aoc)
	}
	if aoc.Policy != engine.StopAtLastCart {
		t.Errorf("Expected default policy in listing, got %s", aoc.Policy)
	}
	if tracks[1].Policy != engine.StopAtFirstCrash {
		t.Errorf("Expected yaml policy in listing, got %s", tracks[1].Policy)
	}
}

func TestManager_SaveConfig(t *testing.T) {
	dir := createTestTrackDir(t)
	defer os.RemoveAll(dir)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	track := createValidTrack()
	track.Name = "Saved"
	if err := manager.SaveConfig("saved", track); err != nil {
		t.Fatalf("Failed to save track: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "saved.json")); err != nil {
		t.Errorf("Expected saved.json on disk: %v", err)
	}

	manager.RefreshCache()
	loaded, err := manager.LoadConfig("saved")
	if err != nil {
		t.Fatalf("Failed to reload saved track: %v", err)
	}
	if loaded.Name != "Saved" || len(loaded.Layout) != 3 {
		t.Errorf("Unexpected reloaded track: %+v", loaded)
	}

	invalid := createValidTrack()
	invalid.Layout = nil
	if err := manager.SaveConfig("invalid", invalid); !errors.Is(err, ErrInvalidTrack) {
		t.Errorf("Expected ErrInvalidTrack, got %v", err)
	}

	if err := manager.SaveConfig("../escape", createValidTrack()); !errors.Is(err, ErrInvalidTrack) {
		t.Errorf("Expected ErrInvalidTrack for path name, got %v", err)
	}
}

func TestManager_SetDefault(t *testing.T) {
	dir := createTestTrackDir(t)
	defer os.RemoveAll(dir)

	writeRawFile(t, dir, "chase.yaml", yamlTrack)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if err := manager.SetDefault("chase"); err != nil {
		t.Fatalf("Failed to set default: %v", err)
	}
	if manager.GetDefault().Name != "Yaml Loop" {
		t.Errorf("Expected Yaml Loop as default, got %s", manager.GetDefault().Name)
	}

	if err := manager.SetDefault("missing"); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Expected ErrTrackNotFound, got %v", err)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	dir := createTestTrackDir(t)
	defer os.RemoveAll(dir)

	for i := 1; i <= 5; i++ {
		track := createValidTrack()
		track.Name = "Track" + strconv.Itoa(i)
		writeTrackFile(t, dir, "track"+strconv.Itoa(i), track)
	}

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	manager.RefreshCache()

	var wg sync.WaitGroup
	errs := make(chan error, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := "track" + strconv.Itoa((id%5)+1)
			if _, err := manager.LoadConfig(name); err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error during concurrent access: %v", err)
	}

	if manager.Count() != 5 {
		t.Errorf("Expected 5 tracks in cache, got %d", manager.Count())
	}
}

func TestManager_CachingBehavior(t *testing.T) {
	dir := createTestTrackDir(t)
	defer os.RemoveAll(dir)

	writeTrackFile(t, dir, "classic", createValidTrack())

	testTrack := createValidTrack()
	testTrack.Name = "Test"
	writeTrackFile(t, dir, "test", testTrack)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	for i := 0; i < 10; i++ {
		track, err := manager.LoadConfig("test")
		if err != nil {
			t.Fatalf("Failed to load track on iteration %d: %v", i, err)
		}
		if track.Name != "Test" {
			t.Errorf("Unexpected track name on iteration %d", i)
		}
	}

	// classic from startup plus test
	if manager.Count() != 2 {
		t.Errorf("Expected 2 tracks in cache, got %d", manager.Count())
	}

	// Cached copies survive the file going away until a refresh
	os.Remove(filepath.Join(dir, "test.json"))
	if _, err := manager.LoadConfig("test"); err != nil {
		t.Errorf("Expected cached track, got %v", err)
	}
	manager.RefreshCache()
	if _, err := manager.LoadConfig("test"); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Expected ErrTrackNotFound after refresh, got %v", err)
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tracks)
}

func TestManager_LoadConfigStaysInTrackDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "tracks")
	outside := filepath.Join(root, "outside")
	for _, d := range []string{dir, outside} {
		if err := os.Mkdir(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	writeRawFile(t, outside, "evil.txt", "->--<-")

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	names := []string{
		"../outside/evil.txt",
		"../outside/evil",
		`..\outside\evil.txt`,
		"..",
		".",
		"",
		filepath.Join(outside, "evil.txt"),
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			if _, err := manager.LoadConfig(name); !errors.Is(err, ErrTrackNotFound) {
				t.Errorf("Expected ErrTrackNotFound for %q, got %v", name, err)
			}
		})
	}

	// A rejected name must not leave anything in the cache
	writeRawFile(t, dir, "evil.txt", "->-<-")
	track, err := manager.LoadConfig("evil")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(track.Layout) != 1 || track.Layout[0] != "->-<-" {
		t.Errorf("Expected the track dir's evil.txt, got %v", track.Layout)
	}
}
