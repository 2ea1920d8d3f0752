package formulacore

import "time"

// Clock provides time functionality for testing, letting NOW()/TODAY() be
// pinned to a fixed instant. Random draws
// are handled separately by VolatileRNG (rng.go), which needs determinism
// a plain random source cannot give: the same (generation, cell, draw)
// triple must always redraw the same value.
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time.
type WallClock struct{}

func (w *WallClock) Now() time.Time { return time.Now() }
