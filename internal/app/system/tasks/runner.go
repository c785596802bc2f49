// internal/app/system/tasks/runner.go
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownJob is returned by RunOnce for a name that was never registered.
var ErrUnknownJob = errors.New("tasks: unknown job")

// Job is a periodic background task. It runs once when the runner starts
// and then every Interval. Timeout bounds a single run; zero means the run
// only ends with the runner.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Observer is told about every finished run. err is nil on success.
type Observer func(job string, d time.Duration, err error)

// JobStatus is a point-in-time view of one job.
type JobStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Running   bool          `json:"running"`
	Runs      int64         `json:"runs"`
	Failures  int64         `json:"failures"`
	LastRun   time.Time     `json:"lastRun"`
	LastTook  time.Duration `json:"lastTook,omitempty"`
	LastError string        `json:"lastError,omitempty"`
}

// Runner schedules jobs on their own goroutines.
type Runner struct {
	logger   *zap.Logger
	jobs     []Job
	observer Observer

	mu    sync.Mutex
	state map[string]*JobStatus

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(logger *zap.Logger) *Runner {
	return &Runner{
		logger: logger,
		state:  make(map[string]*JobStatus),
	}
}

// Observe sets the run observer. Call before Start.
func (r *Runner) Observe(o Observer) {
	r.observer = o
}

// Register adds a job. Call before Start.
func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, job)
	r.mu.Lock()
	r.state[job.Name] = &JobStatus{Name: job.Name, Interval: job.Interval}
	r.mu.Unlock()
}

// Jobs returns the registered job names in registration order.
func (r *Runner) Jobs() []string {
	names := make([]string, 0, len(r.jobs))
	for _, j := range r.jobs {
		names = append(names, j.Name)
	}
	return names
}

// Status returns a copy of every job's counters, sorted by name.
func (r *Runner) Status() []JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobStatus, 0, len(r.state))
	for _, s := range r.state {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start launches every registered job. Call Stop to end them.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
	r.logger.Info("background task runner started", zap.Strings("jobs", r.Jobs()))
}

// Stop cancels all jobs and waits for them until ctx is done, in which case
// it returns ctx.Err() and logs the jobs that did not finish.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("background task runner stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("background task runner shutdown timed out",
			zap.Strings("jobs_still_running", r.busy()))
		return ctx.Err()
	}
}

func (r *Runner) busy() []string {
	var names []string
	for _, s := range r.Status() {
		if s.Running {
			names = append(names, s.Name)
		}
	}
	return names
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	r.execute(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.execute(ctx, job)
		}
	}
}

// execute performs one scheduled run and records its outcome. Runs cut
// short by shutdown are not counted.
func (r *Runner) execute(ctx context.Context, job Job) {
	r.mark(job.Name, func(s *JobStatus) { s.Running = true })

	start := time.Now()
	err := r.invoke(ctx, job)
	took := time.Since(start)

	shuttingDown := ctx.Err() != nil
	r.mark(job.Name, func(s *JobStatus) {
		s.Running = false
		if shuttingDown {
			return
		}
		s.Runs++
		s.LastRun = start
		s.LastTook = took
		s.LastError = ""
		if err != nil {
			s.Failures++
			s.LastError = err.Error()
		}
	})

	switch {
	case shuttingDown:
		r.logger.Debug("job cancelled during shutdown", zap.String("job", job.Name))
		return
	case err != nil:
		r.logger.Error("job failed", zap.String("job", job.Name), zap.Duration("duration", took), zap.Error(err))
	default:
		r.logger.Debug("job completed", zap.String("job", job.Name), zap.Duration("duration", took))
	}
	if r.observer != nil {
		r.observer(job.Name, took, err)
	}
}

func (r *Runner) mark(name string, fn func(*JobStatus)) {
	r.mu.Lock()
	if s, ok := r.state[name]; ok {
		fn(s)
	}
	r.mu.Unlock()
}

// invoke runs one iteration under the job timeout. A panic becomes an error
// so the schedule survives a bad run.
func (r *Runner) invoke(ctx context.Context, job Job) (err error) {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tasks: job %s panicked: %v", job.Name, p)
		}
	}()
	return job.Run(ctx)
}

// RunOnce runs the named job immediately on the caller's goroutine. The run
// is not recorded in Status or reported to the observer.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, job := range r.jobs {
		if job.Name == name {
			return r.invoke(ctx, job)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, name)
}
