package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Job.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Status is a point-in-time snapshot of a Job.
type Status struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	Total      int       `json:"total"`
	Current    string    `json:"current,omitempty"`
	Percent    float64   `json:"percent"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Job is a ProcessDirectory run in a background goroutine.
type Job struct {
	done chan struct{}

	mu      sync.Mutex
	status  Status
	stopped bool
}

// Start launches a run of o with opts and returns at once. opts.Progress, if
// set, is still called after every image. Canceling ctx aborts the run
// outright; Stop lets the current image finish.
func Start(ctx context.Context, o *Orchestrator, opts Options) *Job {
	j := &Job{
		done: make(chan struct{}),
		status: Status{
			ID:        uuid.NewString(),
			State:     StateRunning,
			StartedAt: time.Now(),
		},
	}

	user := opts.Progress
	opts.Progress = func(p Progress) {
		j.update(p)
		if user != nil {
			user(p)
		}
	}

	prev := opts.Stop
	opts.Stop = func() bool {
		return j.stopRequested() || (prev != nil && prev())
	}

	go j.run(ctx, o, opts)
	return j
}

func (j *Job) run(ctx context.Context, o *Orchestrator, opts Options) {
	defer close(j.done)

	output, err := o.ProcessDirectory(ctx, opts)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.Output = output
	j.status.Current = ""
	j.status.FinishedAt = time.Now()
	switch {
	case err == nil:
		j.status.State = StateCompleted
	case errors.Is(err, ErrStopped):
		j.status.State = StateStopped
	default:
		j.status.State = StateFailed
		j.status.Error = err.Error()
	}
}

func (j *Job) update(p Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.Processed = p.Processed
	j.status.Failed = p.Failed
	j.status.Total = p.Total
	j.status.Current = p.Current
	if p.Total > 0 {
		j.status.Percent = float64(p.Processed) / float64(p.Total) * 100
	}
}

// ID returns the job identifier.
func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status.ID
}

// Stop asks the job to finish after the image it is working on.
func (j *Job) Stop() {
	j.mu.Lock()
	j.stopped = true
	j.mu.Unlock()
}

func (j *Job) stopRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stopped
}

// Status returns a snapshot without waiting for recognition to finish.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes and returns its final status.
func (j *Job) Wait() Status {
	<-j.done
	return j.Status()
}
