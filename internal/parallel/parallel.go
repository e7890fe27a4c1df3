// Package parallel provides the data-parallel loop used by CPU kernels
// and optimizers. Work is split across worker goroutines only when the
// problem size crosses a tuning threshold; below it the loop runs
// sequentially. Both modes must be observably equivalent, so callers may
// only pass bodies whose iterations are independent.
package parallel

import (
	"runtime"
	"sync"
)

// GrainSize is the minimum number of items per invocation before the
// loop is worth parallelizing. Small kernels stay sequential to avoid
// goroutine spawn overhead dominating the arithmetic.
const GrainSize = 512

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // whether parallel execution is enabled
	NumWorkers   int  // number of worker goroutines
	MinChunkSize int  // minimum items per goroutine
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: GrainSize,
	}
}

// For executes f(i) for i in [0, n), in parallel when cfg allows and n
// is at least cfg.MinChunkSize, sequentially otherwise.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

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

// ForSamples runs f once per batch sample. Per-sample computations in
// forward/backward passes are independent, but each sample is coarse
// enough that one goroutine per sample pays off well before GrainSize
// items, so the chunk threshold is bypassed and only the enable flag and
// a minimum of two samples gate parallelism.
func ForSamples(samples int, f func(sample int), enabled bool) {
	if !enabled || samples < 2 {
		for i := 0; i < samples; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(samples)
	for i := 0; i < samples; i++ {
		go func(sample int) {
			defer wg.Done()
			f(sample)
		}(i)
	}
	wg.Wait()
}
