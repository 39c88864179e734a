package worker

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PlyoJay/wmsview/internal/geo"
	"github.com/PlyoJay/wmsview/internal/grid"
)

type countingFetcher struct {
	mu       sync.Mutex
	calls    int
	failKeys map[string]bool
}

func (f *countingFetcher) Fetch(ctx context.Context, start, end geo.GeoPoint, size geo.Size) (image.Image, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failKeys[geo.Key(start)]
	f.mu.Unlock()

	if fail {
		return nil, errors.New("fetch failed")
	}
	return image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height)), nil
}

func makeTasks(n int) []Task {
	scale := geo.NewScale(nil)
	d := scale.DegPerTile(2)

	tasks := make([]Task, 0, n)
	for i := 0; i < n; i++ {
		start := geo.GeoPoint{geo.Normalize(float64(i) * d), 36.0}
		tasks = append(tasks, Task{
			Zoom: 2,
			Spec: grid.TileSpec{
				Key:   geo.Key(start),
				Start: start,
				End:   geo.GeoPoint{geo.Normalize(start.X() + d), geo.Normalize(36.0 + d)},
			},
		})
	}
	return tasks
}

func TestPoolRunsAllTasks(t *testing.T) {
	fetcher := &countingFetcher{failKeys: map[string]bool{}}
	pool := New(Config{
		Workers:  4,
		Fetcher:  fetcher,
		TileSize: geo.Size{Width: 8, Height: 8},
	})

	results := pool.Run(context.Background(), makeTasks(20))

	require.Len(t, results, 20)
	require.Equal(t, 20, fetcher.calls)
	for _, r := range results {
		require.NoError(t, r.Err)
		require.NotNil(t, r.Image)
	}
}

func TestPoolReportsFailuresWithoutAborting(t *testing.T) {
	tasks := makeTasks(10)
	fetcher := &countingFetcher{failKeys: map[string]bool{
		tasks[3].Spec.Key: true,
		tasks[7].Spec.Key: true,
	}}

	var (
		mu          sync.Mutex
		lastFailed  int
		updateCount int
	)
	pool := New(Config{
		Workers:  3,
		Fetcher:  fetcher,
		TileSize: geo.Size{Width: 8, Height: 8},
		OnProgress: func(completed, total, failed int) {
			mu.Lock()
			lastFailed = failed
			updateCount++
			mu.Unlock()
		},
	})

	results := pool.Run(context.Background(), tasks)

	require.Len(t, results, 10)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	require.Equal(t, 2, failed)
	require.Equal(t, 10, updateCount)
	require.Equal(t, 2, lastFailed)
}

func TestPoolCancelledContextReportsAllTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &countingFetcher{failKeys: map[string]bool{}}
	pool := New(Config{Workers: 2, Fetcher: fetcher, TileSize: geo.Size{Width: 4, Height: 4}})

	results := pool.Run(ctx, makeTasks(12))

	require.Len(t, results, 12, "every task must surface a result")
	for _, r := range results {
		require.ErrorIs(t, r.Err, context.Canceled)
	}
	require.Equal(t, 0, fetcher.calls, "no fetch may start after cancellation")
}

func TestPoolEmptyTaskList(t *testing.T) {
	pool := New(Config{Workers: 2, Fetcher: &countingFetcher{failKeys: map[string]bool{}}})
	require.Nil(t, pool.Run(context.Background(), nil))
}

func TestPoolDefaultsToOneWorker(t *testing.T) {
	fetcher := &countingFetcher{failKeys: map[string]bool{}}
	pool := New(Config{Workers: 0, Fetcher: fetcher, TileSize: geo.Size{Width: 4, Height: 4}})

	results := pool.Run(context.Background(), makeTasks(3))
	require.Len(t, results, 3)
}
