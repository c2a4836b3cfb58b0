package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/layoffproof/layoff-tracker/internal/metrics"
	"github.com/layoffproof/layoff-tracker/internal/reqctx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type purgerFunc func(ctx context.Context) (int, error)

func (f purgerFunc) PurgeExpiredTokens(ctx context.Context) (int, error) { return f(ctx) }

type reconcilerFunc func(ctx context.Context, limit int) (int, error)

func (f reconcilerFunc) Reconcile(ctx context.Context, limit int) (int, error) { return f(ctx, limit) }

func TestNew_RejectsInvalidSpec(t *testing.T) {
	_, err := New(discard(), Job{Name: "bad", Spec: "every ten minutes", Run: func(context.Context) (int, error) { return 0, nil }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestNew_AcceptsDescriptors(t *testing.T) {
	_, err := New(discard(),
		PurgeTokensJob("@every 10m", purgerFunc(func(context.Context) (int, error) { return 0, nil })),
		ReconcileJob("@hourly", 100, reconcilerFunc(func(context.Context, int) (int, error) { return 0, nil })),
	)
	require.NoError(t, err)
}

func TestRun_RecordsItemsAndTagsContext(t *testing.T) {
	w, err := New(discard())
	require.NoError(t, err)

	var gotJob string
	job := PurgeTokensJob("@every 10m", purgerFunc(func(ctx context.Context) (int, error) {
		gotJob = reqctx.Job(ctx)
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return 3, nil
	}))

	before := testutil.ToFloat64(metrics.WorkerJobItemsTotal.WithLabelValues(job.Name, "purged"))
	w.run(context.Background(), job)

	assert.Equal(t, "purge_magic_tokens", gotJob)
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.WorkerJobItemsTotal.WithLabelValues(job.Name, "purged")))
}

func TestRun_FailureCounted(t *testing.T) {
	w, err := New(discard())
	require.NoError(t, err)

	job := ReconcileJob("@hourly", 50, reconcilerFunc(func(_ context.Context, limit int) (int, error) {
		assert.Equal(t, 50, limit)
		return 0, errors.New("gateway down")
	}))

	before := testutil.ToFloat64(metrics.WorkerJobItemsTotal.WithLabelValues(job.Name, "failed"))
	w.run(context.Background(), job)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.WorkerJobItemsTotal.WithLabelValues(job.Name, "failed")))
}

func TestRun_SkipsAfterShutdown(t *testing.T) {
	w, err := New(discard())
	require.NoError(t, err)

	var calls atomic.Int32
	job := Job{Name: "noop", Spec: "@every 1s", Action: "done", Run: func(context.Context) (int, error) {
		calls.Add(1)
		return 0, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.run(ctx, job)
	assert.Zero(t, calls.Load())
}

func TestStart_RunsScheduledJobsAndStops(t *testing.T) {
	var calls atomic.Int32
	w, err := New(discard(), Job{Name: "tick", Spec: "@every 1s", Action: "done", Run: func(context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
