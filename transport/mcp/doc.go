// Package mcp provides a Model Context Protocol server for the railroad simulator.
//
// The server is a thin client: every tool call is translated into a REST
// request against the api package and the JSON response is rendered as text
// for the agent.
//
// MCP Tools:
//   - create_session: Start a simulation from a named track or inline text
//   - list_sessions, get_session, delete_session: Session management
//   - simulation_state: Rendered grid, carts and crash count
//   - tick: Advance by N ticks
//   - run_simulation: Tick until the stop policy is met
//   - crash_history: Paginated crash log
//   - list_tracks: Track definitions on the server
//   - simulation_rules: Legend and movement rules
//   - describe_cell: Rail piece, cart and crash at one coordinate
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: the main binary mounts HandleMessage on /mcp
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
