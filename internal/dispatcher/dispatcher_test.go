package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestRunCollectsEveryOutcome(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tasks := []Task{
		{Name: "ok", Run: func(context.Context) error { return nil }},
		{Name: "fails", Run: func(context.Context) error { return boom }},
		{Name: "panics", Run: func(context.Context) error { panic("bad record") }},
		{Name: "also-ok", Run: func(context.Context) error { return nil }},
	}

	report := New(2, nil).Run(context.Background(), "meeting-data", tasks)
	require.Len(t, report.Outcomes, 4)
	require.Equal(t, "ok", report.Outcomes[0].Task)
	require.NoError(t, report.Outcomes[0].Err)
	require.ErrorIs(t, report.Outcomes[1].Err, boom)
	require.ErrorContains(t, report.Outcomes[2].Err, "bad record")
	require.NoError(t, report.Outcomes[3].Err)
	require.Equal(t, 2, report.Failed())

	err := report.Err()
	require.ErrorIs(t, err, boom)
	require.Len(t, multierr.Errors(err), 2)
}

func TestRunWaitsForChunkBeforeNext(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		running   int
		maxActive int
		order     []int
	)
	tasks := make([]Task, 7)
	for i := range tasks {
		tasks[i] = Task{Name: fmt.Sprintf("task-%d", i), Run: func(context.Context) error {
			mu.Lock()
			running++
			maxActive = max(maxActive, running)
			order = append(order, i/3)
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return nil
		}}
	}

	report := New(3, nil).Run(context.Background(), "votes", tasks)
	require.NoError(t, report.Err())
	require.LessOrEqual(t, maxActive, 3)
	require.IsNonDecreasing(t, order, "a chunk must not start before the previous one finished")
}

func TestRunStopsAfterCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Int32
	tasks := []Task{
		{Name: "first", Run: func(context.Context) error { ran.Add(1); cancel(); return nil }},
		{Name: "second", Run: func(context.Context) error { ran.Add(1); return nil }},
	}

	report := New(1, nil).Run(ctx, "sessions", tasks)
	require.Equal(t, int32(1), ran.Load())
	require.NoError(t, report.Outcomes[0].Err)
	require.ErrorIs(t, report.Outcomes[1].Err, context.Canceled)
	require.Equal(t, "second", report.Outcomes[1].Task)
}

func TestRunEmpty(t *testing.T) {
	t.Parallel()

	d := New(0, nil)
	require.Equal(t, DefaultChunkSize, d.ChunkSize())
	report := d.Run(context.Background(), "documents", nil)
	require.Empty(t, report.Outcomes)
	require.NoError(t, report.Err())
}
