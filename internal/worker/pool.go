// Package worker provides a bounded-concurrency tile fetch pool for
// bulk download jobs.
package worker

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/PlyoJay/wmsview/internal/geo"
	"github.com/PlyoJay/wmsview/internal/grid"
)

// Fetcher is the subset of the WMS client the pool needs.
type Fetcher interface {
	Fetch(ctx context.Context, start, end geo.GeoPoint, size geo.Size) (image.Image, error)
}

// Task is a single tile fetch.
type Task struct {
	Spec grid.TileSpec
	Zoom int
}

// Result is the outcome of a fetch task.
type Result struct {
	Task    Task
	Image   image.Image
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each task completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Fetcher    Fetcher
	TileSize   geo.Size
	OnProgress ProgressFunc
}

// Pool fans fetch tasks out over a fixed number of workers.
type Pool struct {
	workers    int
	fetcher    Fetcher
	tileSize   geo.Size
	onProgress ProgressFunc
}

// New creates a worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		fetcher:    cfg.Fetcher,
		tileSize:   cfg.TileSize,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and returns their results. It blocks until
// every task has completed or the context is cancelled; failed tasks
// carry their error in the result rather than aborting the batch.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	var (
		completed int
		failed    int
		mu        sync.Mutex
	)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	// The feeder reports tasks it could not hand off as cancelled
	// results, so Run always returns one result per task.
	go func() {
		defer close(taskCh)
		for i, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				for _, dropped := range tasks[i:] {
					resultCh <- Result{Task: dropped, Err: ctx.Err()}
				}
				return
			}
		}
	}()

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		for result := range resultCh {
			results = append(results, result)

			mu.Lock()
			completed++
			if result.Err != nil {
				failed++
			}
			c, f := completed, failed
			mu.Unlock()

			if p.onProgress != nil {
				p.onProgress(c, len(tasks), f)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return results
}

func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		select {
		case <-ctx.Done():
			results <- Result{Task: task, Err: ctx.Err()}
			continue
		default:
		}

		start := time.Now()
		img, err := p.fetcher.Fetch(ctx, task.Spec.Start, task.Spec.End, p.tileSize)
		results <- Result{
			Task:    task,
			Image:   img,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
