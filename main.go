// Command railroad runs the cart and track collision simulator.
//
// Subcommands:
//  1. "serve" (default) – HTTP server exposing the REST API, WebSocket updates and an /mcp endpoint
//  2. "mcp" – MCP stdio server; spins up an internal HTTP API if none is reachable
//  3. "run" – runs a single track to completion in the terminal
//  4. "validate" – checks every track file in a directory
//
// Flags (and their environment variables) control host/port, the track
// directory, log level and optional ngrok tunneling for external access
// during development.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/railroad/api"
	"github.com/wricardo/mcp-training/railroad/game/config"
	"github.com/wricardo/mcp-training/railroad/game/service"
	"github.com/wricardo/mcp-training/railroad/game/session"
	"github.com/wricardo/mcp-training/railroad/logging"
	"github.com/wricardo/mcp-training/railroad/transport/mcp"
	"github.com/wricardo/mcp-training/railroad/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Railroad Cart Simulator"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Error loading .env file")
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("railroad failed")
	}
}

// newApp builds the command tree. Global flags are applied in Before so
// every subcommand logs the same way.
func newApp() *cli.Command {
	return &cli.Command{
		Name:           "railroad",
		Usage:          AppName,
		Version:        Version,
		DefaultCommand: "serve",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "trace, debug, info, warn, error or disabled",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "shorthand for --log-level debug",
			},
			&cli.StringFlag{
				Name:    "track-dir",
				Value:   "tracks",
				Usage:   "directory containing track definitions",
				Sources: cli.EnvVars("TRACK_DIR"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := cmd.String("log-level")
			if cmd.Bool("debug") {
				level = "debug"
			}
			logging.Setup(level, os.Stderr)
			return ctx, nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			mcpCommand(),
			runCommand(),
			validateCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run HTTP server with API, WebSocket, and MCP endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "default-track", Usage: "track new sessions start from when none is named"},
			&cli.DurationFlag{Name: "session-ttl", Value: 24 * time.Hour, Usage: "idle time before a session is removed"},
			&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			simService, sessions, err := initializeServices(cmd.String("track-dir"), cmd.String("default-track"))
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}

			go sessionCleanupRoutine(ctx, sessions, cmd.Duration("session-ttl"))

			return runHTTPServer(ctx, simService, serverOptions{
				Addr:        fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port")),
				Ngrok:       cmd.Bool("ngrok"),
				NgrokAuth:   cmd.String("ngrok-auth"),
				NgrokDomain: cmd.String("ngrok-domain"),
			})
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:    "mcp",
		Aliases: []string{"stdio-mcp", "mcp-stdio"},
		Usage:   "Run MCP stdio server with internal HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Value:   "http://localhost:8080",
				Usage:   "external API to use when it is reachable",
				Sources: cli.EnvVars("RAILROAD_API_URL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			simService, _, err := initializeServices(cmd.String("track-dir"), "")
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			return runStdioMCPWithInternalServer(cmd.String("api-url"), simService)
		},
	}
}

// serverOptions configures runHTTPServer
type serverOptions struct {
	Addr        string
	Ngrok       bool
	NgrokAuth   string
	NgrokDomain string
}

// newRouter combines the REST API with the /mcp endpoint
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runHTTPServer serves the REST API, WebSocket hub and /mcp endpoint until
// SIGINT or SIGTERM. With ngrok enabled the same router is also served
// through a public tunnel.
func runHTTPServer(ctx context.Context, simService service.SimulationService, opts serverOptions) error {
	hub := websocket.NewHub()
	go hub.Run()

	apiServer := api.NewServer(simService, hub)
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", opts.Addr))
	mainRouter := newRouter(apiServer, mcpClient)

	httpServer := &http.Server{
		Addr:         opts.Addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info().Str("addr", opts.Addr).Msg("HTTP server listening")
		log.Info().Msgf("REST API: http://%s/api", opts.Addr)
		log.Info().Msgf("WebSocket: ws://%s/ws?session=<session_id>", opts.Addr)
		log.Info().Msgf("MCP endpoint: http://%s/mcp", opts.Addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
			cancel()
		}
	}()

	if opts.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, mainRouter, opts)
		}()
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("Server stopped")

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	default:
		return nil
	}
}

// runNgrokTunnel serves handler through an ngrok endpoint until ctx ends
func runNgrokTunnel(ctx context.Context, handler http.Handler, opts serverOptions) {
	if opts.NgrokAuth == "" {
		log.Warn().Msg("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Info().Msg("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if opts.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.NgrokDomain))
		log.Info().Str("domain", opts.NgrokDomain).Msg("Using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.NgrokAuth))
	if err != nil {
		log.Error().Err(err).Msg("Failed to start ngrok tunnel")
		return
	}

	ngrokURL := tun.URL()
	log.Info().Str("url", ngrokURL).Msg("🚀 Ngrok tunnel established")
	log.Info().Msgf("  REST API (ngrok): %s/api", ngrokURL)
	log.Info().Msgf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Info().Msgf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close ngrok tunnel")
		}
	}()

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		log.Error().Err(err).Msg("Ngrok server error")
	}
	log.Info().Msg("Ngrok tunnel closed")
}

// initializeServices wires the track and session managers into the
// simulation service. A non-empty defaultTrack replaces the track manager's
// own choice of default.
func initializeServices(trackDir, defaultTrack string) (service.SimulationService, *session.Manager, error) {
	configManager, err := config.NewManager(trackDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create track manager: %w", err)
	}

	if defaultTrack != "" {
		if err := configManager.SetDefault(defaultTrack); err != nil {
			return nil, nil, fmt.Errorf("failed to set default track %q: %w", defaultTrack, err)
		}
	}

	sessionManager := session.NewManager()
	simService := service.NewSimulationService(sessionManager, configManager)

	log.Debug().
		Str("track_dir", trackDir).
		Str("default_track", configManager.GetDefault().Name).
		Msg("Services initialized")

	return simService, sessionManager, nil
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within ttl
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, ttl time.Duration) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(ttl); removed > 0 {
				log.Info().Int("removed", removed).Msg("Cleaned up expired sessions")
			}
		}
	}
}

// apiReachable reports whether an API server answers its health check
func apiReachable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCPWithInternalServer runs an MCP stdio server. It reuses the API
// at externalURL when it is healthy, otherwise it starts an internal HTTP API
// on a random loopback port and targets that.
func runStdioMCPWithInternalServer(externalURL string, simService service.SimulationService) error {
	baseURL := externalURL

	log.Info().Str("url", externalURL).Msg("Checking for external API server")
	if apiReachable(externalURL) {
		log.Info().Str("url", externalURL).Msg("External API server found, using it for MCP")
	} else {
		log.Info().Msg("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		hub := websocket.NewHub()
		go hub.Run()

		httpServer := &http.Server{Handler: api.NewServer(simService, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())
		log.Info().Str("url", baseURL).Msg("Internal HTTP server started for MCP stdio")
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info().Str("api", baseURL).Msg("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
