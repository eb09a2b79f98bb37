package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/railroad/game/engine"
	"github.com/wricardo/mcp-training/railroad/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Railroad Cart Simulator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Railroad Cart Simulator - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Carts ride a fixed ASCII rail network. Every tick each cart moves one cell,
in reading order (top row first, left to right). Two carts on the same cell
crash and both are removed.

AVAILABLE TOOLS:
- create_session: Start a simulation from a named track or inline track text
- list_sessions: List all active sessions
- get_session: Get session details
- delete_session: Remove a session
- simulation_state: Current grid, carts and crashes
- tick: Advance a session by N ticks
- run_simulation: Tick until the stop policy is met
- crash_history: Paginated crash log
- list_tracks: List track definitions on the server
- simulation_rules: Full movement and collision rules
- describe_cell: Inspect one grid cell (rail piece, cart, crash)`),
	)

	// Register all tools
	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new simulation session from a named track or inline track text",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"track": map[string]interface{}{
					"type":        "string",
					"description": "Track ID to load (optional, defaults to the server's default track)",
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Inline track text, rows separated by newlines (overrides track)",
				},
				"policy": map[string]interface{}{
					"type":        "string",
					"enum":        []string{string(engine.StopAtLastCart), string(engine.StopAtFirstCrash)},
					"description": "When the simulation counts as finished",
				},
				"strict": map[string]interface{}{
					"type":        "boolean",
					"description": "Reject tracks whose rows differ in width",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active simulation sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_session",
		Description: "Delete a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleDeleteSession)

	// Simulation
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "simulation_state",
		Description: "Get the current simulation state with the rendered grid",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleSimulationState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tick",
		Description: "Advance the simulation by a number of ticks, stopping early once it is finished",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"count": map[string]interface{}{
					"type":        "integer",
					"description": "Number of ticks (default 1)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleTick)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_simulation",
		Description: "Tick until the session's stop policy is satisfied or the tick budget runs out",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"max_ticks": map[string]interface{}{
					"type":        "integer",
					"description": "Tick budget for this call (optional)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleRun)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "crash_history",
		Description: "Get the crash log for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Items per page",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest (asc) or newest (desc) first",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleCrashHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_tracks",
		Description: "List available track definitions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListTracks)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "simulation_rules",
		Description: "Get the track legend and the movement and collision rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleSimulationRules)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Get detailed information about one grid cell: the rail piece under it, any cart on it and whether a crash happened there",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "X coordinate (column) of the cell to describe (0-based)",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Y coordinate (row) of the cell to describe (0-based)",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// arguments returns the tool call arguments, never nil
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// intArg reads a JSON number argument
func intArg(args map[string]interface{}, key string) (int, bool) {
	v, ok := args[key].(float64)
	return int(v), ok
}

func sessionPath(sessionID string, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]interface{}{}
	for _, key := range []string{"track", "text", "policy"} {
		if v, _ := args[key].(string); v != "" {
			body[key] = v
		}
	}
	if strict, ok := args["strict"].(bool); ok {
		body["strict"] = strict
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Created " + formatSessionInfo(&session)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		status := "running"
		switch {
		case s.Fault != "":
			status = "derailed"
		case s.State != nil && s.State.Done:
			status = "finished"
		}
		carts := 0
		if s.State != nil {
			carts = s.State.CartCount
		}
		fmt.Fprintf(&b, "- %s (Track: %s, Carts: %d, %s, Created: %s)\n",
			s.ID, s.TrackID, carts, status, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var response struct {
		Message string `json:"message"`
	}
	if err := c.apiCall(ctx, "DELETE", sessionPath(sessionID, ""), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Message), nil
}

func (c *Client) handleSimulationState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var state engine.StateView
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatState(&state)), nil
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	body := map[string]interface{}{}
	if count, ok := intArg(args, "count"); ok {
		body["count"] = count
	}

	var result service.TickResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/tick"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatTickResult(&result)), nil
}

func (c *Client) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	body := map[string]interface{}{}
	if maxTicks, ok := intArg(args, "max_ticks"); ok {
		body["max_ticks"] = maxTicks
	}

	var result service.RunResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/run"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRunResult(&result)), nil
}

func (c *Client) handleCrashHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	params := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		params.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		params.Set("limit", fmt.Sprint(limit))
	}
	if order, _ := args["order"].(string); order != "" {
		params.Set("order", order)
	}

	path := sessionPath(sessionID, "/crashes")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var tracks []service.TrackInfo
	if err := c.apiCall(ctx, "GET", "/api/tracks", nil, &tracks); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Tracks:\n\n")
	for _, track := range tracks {
		fmt.Fprintf(&b, "• %s (%s)\n  %s\n  Grid: %dx%d, Carts: %d\n\n",
			track.TrackID, track.Name, track.Description, track.Cols, track.Rows, track.Carts)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleSimulationRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rules := `Railroad Cart Simulator - Rules

TRACK LEGEND:
• |  vertical rail
• -  horizontal rail
• /  curve
• \  curve
• +  intersection
• ^ v < >  a cart on straight rail, pointing the way it travels
• X  crash site (only in rendered snapshots)
• space  no rail

Coordinates are (x, y): x is the column, y is the row, both from 0 at the top left.

EACH TICK:
1. Carts move one at a time, in reading order of where they stood when the tick began
   (top row first, left to right within a row).
2. A moving cart steps one cell in its direction.
3. If that cell already holds a cart, both carts are removed and the cell is recorded
   as a crash. A cart that was hit before its own turn does not move this tick.
4. Otherwise the cart turns according to the piece it entered:
   - '/' turns Up<->Right and Down<->Left
   - '\' turns Up<->Left and Down<->Right
   - '+' uses the cart's next turn: left, then straight, then right, repeating
   - '|' and '-' keep the direction

STOPPING:
- last_cart (default): finished when one cart or none remains; the survivor is reported
- first_crash: finished as soon as any crash has happened

Because carts move one by one, two carts driving nose to tail can collide even
though neither would hit the other if all moved at once.

A cart that steps off the rails derails the session. A derailed session cannot be
ticked again; create a new one.

TOOLS:
- tick with count=1 to watch a crash happen step by step
- run_simulation to jump to the outcome
- describe_cell to check which rail piece lies under a cart`

	return mcp.NewToolResultText(rules), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required"), nil
	}

	// The session carries both the layout and the live state
	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if session.State == nil || session.Track == nil {
		return mcp.NewToolResultError("session has no state"), nil
	}

	state := session.State
	if x < 0 || x >= state.Cols || y < 0 || y >= state.Rows {
		return mcp.NewToolResultError(fmt.Sprintf("Coordinates (%d, %d) are out of bounds. Grid is %dx%d (x 0-%d, y 0-%d)",
			x, y, state.Cols, state.Rows, state.Cols-1, state.Rows-1)), nil
	}

	track, _, err := engine.ParseTrack(session.Track.Text())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(describeCell(track, state, engine.Position{X: x, Y: y})), nil
}

// describeCell reports what occupies a single grid cell
func describeCell(track *engine.Track, state *engine.StateView, pos engine.Position) string {
	segment := track.At(pos)

	var b strings.Builder
	fmt.Fprintf(&b, "Cell at position (%d, %d):\n", pos.X, pos.Y)
	b.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "Rail: %s '%c'\n", segment, segment.Glyph())
	fmt.Fprintf(&b, "Shown as: %s\n", displayChar(state, pos))

	for _, cart := range state.Carts {
		if cart.X == pos.X && cart.Y == pos.Y {
			fmt.Fprintf(&b, "Cart: heading %s, next intersection turn %s\n", cart.Direction, cart.NextTurn)
		}
	}

	for _, crash := range state.Crashes {
		if crash.Position == pos {
			fmt.Fprintf(&b, "Crash: tick %d\n", crash.Tick)
		}
	}

	if nearest, distance, ok := engine.NearestCrash(state.Crashed, pos); ok && distance > 0 {
		fmt.Fprintf(&b, "Nearest crash: %d,%d (%d cells away)\n", nearest.X, nearest.Y, distance)
	}

	switch segment {
	case engine.Empty:
		b.WriteString("No rail here. A cart entering this cell derails.\n")
	case engine.Intersection:
		b.WriteString("Carts entering here turn by their next-turn rotation.\n")
	case engine.CurveRight, engine.CurveLeft:
		b.WriteString("Carts entering here always turn.\n")
	}

	return b.String()
}

func displayChar(state *engine.StateView, pos engine.Position) string {
	if pos.Y < 0 || pos.Y >= len(state.Snapshot) {
		return "' '"
	}
	row := []rune(state.Snapshot[pos.Y])
	if pos.X < 0 || pos.X >= len(row) {
		return "' '"
	}
	return fmt.Sprintf("'%c'", row[pos.X])
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nTrack: %s\nPolicy: %s\nCreated: %s\n",
		session.ID, session.TrackID, session.Policy,
		session.CreatedAt.Format("2006-01-02 15:04:05"))
	if session.Fault != "" {
		fmt.Fprintf(&b, "Fault: %s\n", session.Fault)
	}
	b.WriteString("\n")
	b.WriteString(formatState(session.State))
	return b.String()
}

func formatState(state *engine.StateView) string {
	if state == nil {
		return "No simulation state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tick: %d | Carts: %d | Crashes: %d | Policy: %s\n\n",
		state.Tick, state.CartCount, len(state.Crashes), state.Policy)

	for _, line := range state.Snapshot {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(state.Carts) > 0 && len(state.Carts) <= 20 {
		b.WriteString("\nCarts:\n")
		for _, cart := range state.Carts {
			fmt.Fprintf(&b, "- (%d,%d) %s heading %s, next turn %s\n",
				cart.X, cart.Y, cart.Glyph, cart.Direction, cart.NextTurn)
		}
	}

	if state.Done {
		b.WriteString("\n🏁 FINISHED")
		if state.Survivor != nil {
			fmt.Fprintf(&b, " - survivor at %d,%d", state.Survivor.X, state.Survivor.Y)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func formatCrashes(crashes []engine.Crash) string {
	if len(crashes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Crashes:\n")
	for _, crash := range crashes {
		fmt.Fprintf(&b, "- 💥 tick %d at %d,%d\n", crash.Tick, crash.Position.X, crash.Position.Y)
	}
	return b.String()
}

func formatTickResult(result *service.TickResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Executed %d/%d ticks\n", result.TicksExecuted, result.RequestedTicks)
	if result.Truncated {
		fmt.Fprintf(&b, "Request capped at %d ticks\n", result.Limit)
	}
	if result.Done && result.TicksExecuted < result.RequestedTicks {
		b.WriteString("Stopped: simulation finished\n")
	}
	if crashes := formatCrashes(result.NewCrashes); crashes != "" {
		b.WriteString("\n")
		b.WriteString(crashes)
	}
	b.WriteString("\n")
	b.WriteString(formatState(result.State))
	return b.String()
}

func formatRunResult(result *service.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Executed %d ticks (limit %d)\n", result.TicksExecuted, result.Limit)
	fmt.Fprintf(&b, "Stop: %s", result.StopReasonCode)
	if result.StoppedReason != "" {
		fmt.Fprintf(&b, " (%s)", result.StoppedReason)
	}
	b.WriteString("\n")

	if result.FirstCrash != nil {
		fmt.Fprintf(&b, "First crash: %d,%d on tick %d\n",
			result.FirstCrash.Position.X, result.FirstCrash.Position.Y, result.FirstCrash.Tick)
	}
	if result.Survivor != nil {
		fmt.Fprintf(&b, "Last cart: %d,%d heading %s\n",
			result.Survivor.X, result.Survivor.Y, result.Survivor.Direction)
	}
	if crashes := formatCrashes(result.NewCrashes); crashes != "" {
		b.WriteString("\n")
		b.WriteString(crashes)
	}

	b.WriteString("\n")
	b.WriteString(formatState(result.State))
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Crash History (Page %d/%d) - Total: %d\n\n",
		history.Page, history.TotalPages, history.TotalCrashes)

	for i, crash := range history.Crashes {
		num := (history.Page-1)*history.PageSize + i + 1
		fmt.Fprintf(&b, "%d. tick %d at %d,%d\n", num, crash.Tick, crash.Position.X, crash.Position.Y)
	}
	if len(history.Crashes) == 0 {
		b.WriteString("(no crashes)\n")
	}

	return b.String()
}
