package deseq

import (
	"runtime"
	"sync"
)

// WorkItem holds one gene's counts ready for a GLM fit.
type WorkItem struct {
	Seq    int
	GeneID string
	Counts []int
	Alpha  float64 // shrunk dispersion, NaN for excluded genes
}

// WorkResult holds the fit output for a single gene.
type WorkResult struct {
	Seq    int
	GeneID string
	Fit    FitResult
}

// Engine fits genes using a pool of workers. The design (size factors
// and sex indicator) is shared across all fits.
type Engine struct {
	sizeFactors []float64
	male        []bool
}

// NewEngine creates a fit engine for a cohort. male[j] marks sample j
// as the non-reference sex level.
func NewEngine(sizeFactors []float64, male []bool) *Engine {
	return &Engine{sizeFactors: sizeFactors, male: male}
}

// ParallelFit fits work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func (e *Engine) ParallelFit(items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				results <- WorkResult{
					Seq:    item.Seq,
					GeneID: item.GeneID,
					Fit:    FitGene(item.Counts, e.sizeFactors, e.male, item.Alpha),
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// parallelFor runs fn over [0, n) split into contiguous chunks, one
// goroutine per worker. If workers is 0, runtime.NumCPU() is used.
func parallelFor(n, workers int, fn func(i int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := range n {
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}
