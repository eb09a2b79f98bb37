// Package websocket pushes live simulation updates to browser clients.
//
// A central Hub owns every connection. Clients join a session with
// /ws?session=<id> and receive one JSON Message per frame:
//
//	{"session_id": "ab12", "event": "state_update", "state": {...}}
//
// State updates carry an engine.StateView including the rendered snapshot.
// Other events (crash, simulation_done, derailed, session_deleted) carry a
// small data payload instead.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//
//	hub.BroadcastState(sessionID, sim.View())
//
// Concurrency:
//
// Registration, removal and broadcasting all run on the Hub's Run
// goroutine. Broadcast calls only enqueue; when the queue is full the
// message is dropped rather than blocking the caller. Clients whose send
// buffer fills up are disconnected.
package websocket
