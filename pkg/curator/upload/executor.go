// Package upload runs a plan's transfer tasks through a bounded worker
// pool and aggregates the outcome into a run summary.
package upload

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seqops/curator/pkg/curator/logging"
	"github.com/seqops/curator/pkg/curator/remote"
	"github.com/seqops/curator/pkg/curator/types"
)

var logger = logging.Get("upload")

const (
	// MinWorkers and MaxWorkers bound the pool size. The ceiling keeps a
	// single host from saturating the shared uplink; the floor keeps a
	// large plan from serializing behind one slow file.
	MinWorkers = 2
	MaxWorkers = 6

	// DefaultWorkers is the pool size when configuration is silent.
	DefaultWorkers = 4
)

// Outcome is the tri-state result of one task.
type Outcome int

const (
	// OutcomeUploaded means the transfer completed.
	OutcomeUploaded Outcome = iota
	// OutcomeFailed means the transfer errored; the run continues.
	OutcomeFailed
	// OutcomeSkipped means cancellation arrived before the task started.
	OutcomeSkipped
)

// TaskResult reports how a single task ended.
type TaskResult struct {
	Task    types.UploadTask
	Outcome Outcome
	Err     error
	Elapsed time.Duration
}

// Summary aggregates a run. Counters are written only by the
// coordinator goroutine draining the result channel, so readers see a
// consistent snapshot once Run returns.
type Summary struct {
	Succeeded        int
	Failed           int
	Skipped          int
	BytesTransferred int64
	Elapsed          time.Duration
	Failures         []TaskResult
}

// Complete reports that every task was attempted and succeeded.
func (s Summary) Complete() bool {
	return s.Failed == 0 && s.Skipped == 0
}

// Throughput returns bytes per second over the run, 0 for an empty run.
func (s Summary) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.BytesTransferred) / s.Elapsed.Seconds()
}

// Executor fans a task list out over a transfer pool.
type Executor struct {
	transfer    remote.Transfer
	workers     int
	taskTimeout time.Duration
	dryRun      bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers sets the pool size, clamped to [MinWorkers, MaxWorkers].
func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n < MinWorkers {
			n = MinWorkers
		}
		if n > MaxWorkers {
			n = MaxWorkers
		}
		e.workers = n
	}
}

// WithTaskTimeout overrides the per-task deadline.
func WithTaskTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.taskTimeout = d
		}
	}
}

// WithDryRun classifies every task without moving data.
func WithDryRun(dry bool) Option {
	return func(e *Executor) { e.dryRun = dry }
}

// NewExecutor creates an executor over a transfer implementation.
func NewExecutor(transfer remote.Transfer, opts ...Option) *Executor {
	e := &Executor{
		transfer:    transfer,
		workers:     DefaultWorkers,
		taskTimeout: remote.DefaultTransferTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the tasks and returns the summary. Individual failures
// are contained: the pool keeps draining the remaining tasks. Context
// cancellation stops feeding the pool; tasks never started are counted
// as skipped, and the partial summary is returned with ctx.Err().
//
// Each task is attempted at most once. There are no automatic retries;
// the next pipeline run re-plans whatever failed.
func (e *Executor) Run(ctx context.Context, dest types.Destination, tasks []types.UploadTask) (Summary, error) {
	start := time.Now()
	summary := Summary{}
	if len(tasks) == 0 {
		return summary, nil
	}

	taskCh := make(chan types.UploadTask)
	resultCh := make(chan TaskResult)

	var g errgroup.Group
	for i := 0; i < e.workers; i++ {
		g.Go(func() error {
			for task := range taskCh {
				resultCh <- e.runOne(ctx, dest, task)
			}
			return nil
		})
	}

	// Feeder: stops at cancellation, leaving the remainder unserved.
	fed := 0
	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
				fed++
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		g.Wait() //nolint:errcheck // workers only return nil
		close(resultCh)
	}()

	// Coordinator: the sole writer of the counters.
	for res := range resultCh {
		switch res.Outcome {
		case OutcomeUploaded:
			summary.Succeeded++
			summary.BytesTransferred += res.Task.Size
		case OutcomeFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, res)
			logger.Error("upload failed",
				"local", res.Task.LocalPath, "key", res.Task.RemoteKey, "error", res.Err)
		case OutcomeSkipped:
			summary.Skipped++
		}
	}

	summary.Skipped += len(tasks) - fed
	summary.Elapsed = time.Since(start)

	logger.Info("upload run finished",
		"succeeded", summary.Succeeded, "failed", summary.Failed,
		"skipped", summary.Skipped, "bytes", summary.BytesTransferred,
		"elapsed", summary.Elapsed.Round(time.Millisecond))

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// runOne performs a single task under its own deadline.
func (e *Executor) runOne(ctx context.Context, dest types.Destination, task types.UploadTask) TaskResult {
	if err := ctx.Err(); err != nil {
		return TaskResult{Task: task, Outcome: OutcomeSkipped, Err: err}
	}

	taskCtx, cancel := context.WithTimeout(ctx, e.taskTimeout)
	defer cancel()

	begin := time.Now()
	err := e.transfer.Upload(taskCtx, task.LocalPath, dest, task.RemoteKey, e.dryRun)
	elapsed := time.Since(begin)

	if err != nil {
		outcome := OutcomeFailed
		if errors.Is(err, context.Canceled) {
			outcome = OutcomeSkipped
		}
		return TaskResult{Task: task, Outcome: outcome, Err: err, Elapsed: elapsed}
	}

	logger.Debug("uploaded", "key", task.RemoteKey,
		"bytes", task.Size, "elapsed", elapsed.Round(time.Millisecond))
	return TaskResult{Task: task, Outcome: OutcomeUploaded, Elapsed: elapsed}
}
