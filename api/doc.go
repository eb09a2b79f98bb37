// Package api provides HTTP REST API handlers for the railroad simulator.
//
// The api package implements:
//   - Session management endpoints
//   - Tick and run endpoints that advance a session's simulation
//   - Track listing, lookup and upload
//   - WebSocket upgrade handling for live state updates
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session from a named track or inline text
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/overview - Compact summaries (?sessionIds=a,b or ?track=name)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Simulation:
//   - GET /api/sessions/{id}/state - Current StateView
//   - GET /api/sessions/{id}/snapshot - Rendered grid as text/plain
//   - POST /api/sessions/{id}/tick - Advance {"count": N} ticks
//   - POST /api/sessions/{id}/run - Run to completion, bounded by {"max_ticks": N}
//   - GET /api/sessions/{id}/crashes - Paginated crash log (?page&limit&order)
//
// Tracks:
//   - GET /api/tracks - List track files
//   - GET /api/tracks/{name} - Get a track definition
//   - POST /api/tracks - Save a track (?id= overrides the file name)
//
// Errors are returned as {"error": "..."}. Unknown sessions and tracks map
// to 404, invalid input to 400 and derailed sessions to 409.
//
// Usage:
//
//	server := api.NewServer(simService, hub)
//	http.ListenAndServe(":8080", server)
package api
