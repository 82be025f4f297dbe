// Package dispatch turns validated webhook requests into scheduled jobs.
// It is the glue between the HTTP intake, the hook registry, the providers,
// the rate limiter and the scheduler.
package dispatch

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/piaoger/fisher/internal/hook"
	"github.com/piaoger/fisher/internal/metrics"
	"github.com/piaoger/fisher/internal/provider"
	"github.com/piaoger/fisher/internal/scheduler"
)

// ResultKind is the terminal state of a dispatched request.
type ResultKind int

const (
	// Admitted means a job was created and queued.
	Admitted ResultKind = iota
	// Ignored means the request was authentic but no job was created
	// (ping events, filtered events).
	Ignored
	// NotFound means no hook matches the trigger path.
	NotFound
	// RateLimited means the client address is over the invalid-request
	// threshold.
	RateLimited
	// InvalidRequest means provider validation rejected the request.
	InvalidRequest
	// ShuttingDown means the scheduler no longer accepts jobs.
	ShuttingDown
)

// Result is the outcome of a dispatch, ready to be mapped onto an HTTP
// response.
type Result struct {
	Kind   ResultKind
	Reason string
	// JobID is set for admitted requests.
	JobID string
}

// Snapshots provides the current hook snapshot. *hook.Registry satisfies it.
type Snapshots interface {
	Current() *hook.Snapshot
}

// Limiter is the slice of the rate limiter the dispatcher needs.
type Limiter interface {
	IsBlocked(address string) bool
	RecordInvalid(address string)
}

// Submitter is the slice of the scheduler the dispatcher needs.
type Submitter interface {
	Submit(job *scheduler.Job) error
}

// Dispatcher resolves, rate-checks and validates requests, admitting the
// valid ones as jobs. Dispatch is fire-and-forget: the caller responds as
// soon as the job is queued, never waiting for the script.
type Dispatcher struct {
	snapshots Snapshots
	limiter   Limiter
	scheduler Submitter
}

// New creates a dispatcher. The limiter may be nil to disable rate
// limiting.
func New(snapshots Snapshots, limiter Limiter, sched Submitter) *Dispatcher {
	return &Dispatcher{
		snapshots: snapshots,
		limiter:   limiter,
		scheduler: sched,
	}
}

// Dispatch runs one request through the protocol state machine:
// resolve the hook, check the rate limiter, validate with the hook's
// providers, then admit a job.
func (d *Dispatcher) Dispatch(hookName string, req *provider.Request) Result {
	snapshot := d.snapshots.Current()

	h, ok := snapshot.Get(hookName)
	if !ok {
		// Routing misses are not attacker signals; they never count
		// toward rate limiting.
		return Result{Kind: NotFound, Reason: "no hook named " + hookName}
	}

	if d.limiter != nil && d.limiter.IsBlocked(req.Address) {
		metrics.RecordRateLimited()
		log.Debug().
			Str("hook", hookName).
			Str("address", req.Address).
			Msg("Request rate limited")
		return Result{Kind: RateLimited, Reason: "too many invalid requests"}
	}

	outcome, kind := h.Validate(req)
	switch outcome.Kind {
	case provider.OutcomeReject:
		if d.limiter != nil {
			d.limiter.RecordInvalid(req.Address)
		}
		log.Warn().
			Str("hook", hookName).
			Str("address", req.Address).
			Str("reason", outcome.Reason).
			Msg("Request validation failed")
		return Result{Kind: InvalidRequest, Reason: outcome.Reason}

	case provider.OutcomeIgnore:
		log.Debug().
			Str("hook", hookName).
			Str("address", req.Address).
			Msg("Request acknowledged without a job")
		return Result{Kind: Ignored}
	}

	job := scheduler.NewJob(h, kind, outcome.Env, req.Body)
	if err := d.scheduler.Submit(job); err != nil {
		if errors.Is(err, scheduler.ErrShuttingDown) {
			return Result{Kind: ShuttingDown, Reason: "shutting down"}
		}
		return Result{Kind: ShuttingDown, Reason: err.Error()}
	}

	log.Info().
		Str("job", job.ID).
		Str("hook", hookName).
		Str("address", req.Address).
		Uint64("generation", snapshot.Generation()).
		Msg("Job admitted")

	return Result{Kind: Admitted, JobID: job.ID}
}
