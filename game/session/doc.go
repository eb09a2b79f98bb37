// Package session provides in-memory session management for the railroad simulator.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique 4-character session ID generation
//   - Case-insensitive lookup
//   - Expiry of idle sessions
//
// Manager stores service.Session values, each owning its own
// engine.Simulation. Sessions are not persisted; restarting the process
// drops them.
//
// Usage:
//
//	manager := session.NewManager()
//	sess, err := manager.Create("", engine.DefaultTrackConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Remove sessions idle for more than an hour
//	removed := manager.CleanupExpiredSessions(time.Hour)
package session
