// Package parallel provides the fan-out helper used by the local runtime to
// scatter exchange traffic across destination buffers.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled    bool // Whether parallel execution is enabled.
	NumWorkers int  // Number of worker goroutines to use.
	MinPerCall int  // Minimum iterations before spawning goroutines.
}

// DefaultConfig returns sensible defaults based on CPU count. Iterations here
// are coarse (a whole destination's worth of row copies each), so even two of
// them are worth a goroutine.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
		MinPerCall: 2,
	}
}

// For executes f(i) for i in [0, n) with optional parallelism. Iterations
// must be independent; the local runtime guarantees this by only pairing For
// with writes to disjoint destination buffers.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinPerCall {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, 1)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}
