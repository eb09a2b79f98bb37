// Package service provides the business logic layer for the railroad simulator.
//
// The service package implements:
//   - Multi-session simulation management
//   - Track loading through a ConfigManager
//   - Bounded ticking and run-to-completion with stop reasons
//   - Crash history pagination
//
// Core Interfaces:
//
// SimulationService is the main service interface used by the HTTP, WebSocket
// and MCP transports. SessionManager stores sessions and ConfigManager loads
// track definitions.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("tracks")
//	svc := service.NewSimulationService(sessionMgr, configMgr)
//
//	info, err := svc.CreateSession(ctx, service.CreateOptions{Track: "classic"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := svc.Run(ctx, info.ID, 0)
//	fmt.Println(result.StopReasonCode, result.Survivor)
//
// Faults:
//
// A cart that runs off the rails panics inside the engine. The service
// recovers it, records the fault on the session and returns ErrDerailed.
// Faulted sessions can still be inspected but every later Tick or Run call
// fails with ErrSessionFaulted.
package service
