// Package config provides track definition management for the railroad simulator.
//
// The config package handles:
//   - Loading track definitions from JSON, YAML and plain text files
//   - Validation through engine.ValidateTrackConfig
//   - Default track selection with a built-in fallback
//   - Track discovery and listing
//
// Track Formats:
//
// JSON and YAML files carry a name, a description, the layout rows and
// optional policy, max_ticks and strict fields:
//
//	name: Figure eight
//	policy: first_crash
//	layout:
//	  - '/->-\'
//	  - '|   |'
//	  - '\-<-/'
//
// A .txt file is the bare track text, one grid row per line; the file name
// becomes the track name.
//
// Usage:
//
//	manager, err := config.NewManager("tracks")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	track, err := manager.LoadConfig("classic")
//	tracks, err := manager.ListConfigs()
//
// Track IDs are file names without extension. When several files share an
// ID the first extension in Extensions wins.
package config
