// Package worker runs the periodic maintenance jobs: purging spent magic
// tokens and reconciling subscription mirrors with the payment provider.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/layoffproof/layoff-tracker/internal/metrics"
	"github.com/layoffproof/layoff-tracker/internal/reqctx"
	"github.com/robfig/cron/v3"
)

const defaultJobTimeout = 5 * time.Minute

// Job is one periodic task. Run returns how many items it acted on; the count
// is recorded under Action.
type Job struct {
	Name   string
	Spec   string // cron spec, descriptors such as "@every 10m" allowed
	Action string
	Run    func(ctx context.Context) (int, error)
}

type Worker struct {
	cron       *cron.Cron
	logger     *slog.Logger
	jobs       []Job
	jobTimeout time.Duration
}

// New validates every job's schedule up front so a typo fails at startup.
func New(logger *slog.Logger, jobs ...Job) (*Worker, error) {
	logger = logger.With("component", "worker")
	cl := cronLogger{logger: logger}

	w := &Worker{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		), cron.WithLogger(cl)),
		logger:     logger,
		jobs:       jobs,
		jobTimeout: defaultJobTimeout,
	}

	for _, j := range jobs {
		if _, err := cron.ParseStandard(j.Spec); err != nil {
			return nil, fmt.Errorf("job %s: invalid schedule %q: %w", j.Name, j.Spec, err)
		}
	}
	return w, nil
}

// Start schedules every job and blocks until ctx is done, then waits for
// running jobs to return.
func (w *Worker) Start(ctx context.Context) {
	metrics.WorkerStartTime.SetToCurrentTime()

	for _, j := range w.jobs {
		// Specs were validated in New.
		_, _ = w.cron.AddFunc(j.Spec, func() { w.run(ctx, j) })
		w.logger.Info("job scheduled", "job", j.Name, "spec", j.Spec)
	}
	w.cron.Start()
	w.logger.Info("worker started", "jobs", len(w.jobs))

	<-ctx.Done()
	<-w.cron.Stop().Done()

	metrics.WorkerShutdownsTotal.Inc()
	w.logger.Info("worker shut down")
}

func (w *Worker) run(ctx context.Context, j Job) {
	if ctx.Err() != nil {
		return
	}
	ctx = reqctx.WithJob(ctx, j.Name)
	ctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := j.Run(ctx)
	metrics.WorkerJobDuration.WithLabelValues(j.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.WorkerJobItemsTotal.WithLabelValues(j.Name, "failed").Inc()
		w.logger.ErrorContext(ctx, "job failed", "error", err)
		return
	}
	if n > 0 {
		metrics.WorkerJobItemsTotal.WithLabelValues(j.Name, j.Action).Add(float64(n))
		w.logger.InfoContext(ctx, "job finished", "count", n, "action", j.Action)
	}
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
