// Package engine provides the cart simulation core.
//
// The engine package implements:
//   - Track parsing from text into an immutable grid of rail segments
//   - Per-tick ordered cart movement over curves and intersections
//   - Collision detection with removal of both carts involved
//   - Textual snapshots of the grid, carts and crash sites
//
// Core Types:
//
// Track is the read-only rail grid. Simulation owns the live carts, keyed
// by their position, and the set of positions where collisions happened.
// StateView is a serialisable projection used by the service layers, and
// TrackConfig describes a named track loaded from disk.
//
// Usage:
//
//	sim, err := engine.FromText(text, engine.WithPolicy(engine.StopAtLastCart))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for !sim.Done() {
//		sim.Tick()
//	}
//	fmt.Println(sim.Crashed(), sim.Carts())
//
// Rules:
//
// Every tick moves each live cart one cell, in row-major order of the
// positions held at the start of the tick. A cart entering an occupied cell
// crashes with the occupant: both are removed and the cell is recorded.
// Carts cycle left, straight, right at successive intersections. Running
// off the rails is an invariant violation and panics with *Derailment.
//
// The engine is single-threaded and holds no locks; callers that share a
// Simulation must serialise access themselves.
package engine
