// Package scheduler executes hook scripts through a bounded worker pool
// with priority ordering and per-hook exclusivity.
package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/piaoger/fisher/internal/hook"
	"github.com/piaoger/fisher/internal/provider"
)

// Job is one scheduled execution of a hook script. It keeps the hook
// definition it was admitted with, so a registry reload never changes what
// a queued job will run.
type Job struct {
	// ID identifies the job in logs.
	ID string
	// Hook is the definition bound at admission time.
	Hook *hook.Hook
	// Provider is the protocol that accepted the request; it prefixes the
	// job's environment variables.
	Provider provider.Kind
	// Env holds the provider-extracted environment variables, unprefixed.
	Env map[string]string
	// Body is the raw request body, written to disk for the script.
	Body []byte
	// Priority and Parallel are copied from the hook at admission.
	Priority int
	Parallel bool
	// EnqueuedAt is the admission timestamp.
	EnqueuedAt time.Time

	// seq is the arrival order, assigned by the scheduler on submit and
	// used to break priority ties FIFO.
	seq uint64
}

// NewJob builds a job for the given hook from a validated request.
func NewJob(h *hook.Hook, kind provider.Kind, env map[string]string, body []byte) *Job {
	return &Job{
		ID:         uuid.New().String(),
		Hook:       h,
		Provider:   kind,
		Env:        env,
		Body:       body,
		Priority:   h.Priority,
		Parallel:   h.Parallel,
		EnqueuedAt: time.Now(),
	}
}

// Result records how a job's subprocess terminated.
type Result struct {
	// ExitCode is the subprocess exit code; -1 when it was killed by a
	// signal.
	ExitCode int
	// Success is true for a zero exit code.
	Success bool
	// Output is the combined stdout and stderr of the script.
	Output []byte
	// Duration is the wall-clock execution time.
	Duration time.Duration
}

// Stats is a consistent point-in-time view of the scheduler, served by the
// health endpoint.
type Stats struct {
	// QueuedJobs counts jobs not yet assigned to a worker, including jobs
	// parked behind an exclusivity lock.
	QueuedJobs int `json:"queued_jobs"`
	// BusyThreads counts workers currently executing a job.
	BusyThreads int `json:"busy_threads"`
	// MaxThreads is the worker pool size.
	MaxThreads int `json:"max_threads"`
}
