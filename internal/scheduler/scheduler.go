package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/piaoger/fisher/internal/metrics"
)

// ErrShuttingDown is returned by Submit once shutdown has begun. Callers
// should answer the request with a retryable error instead of dropping it.
var ErrShuttingDown = errors.New("scheduler is shutting down")

// Runner executes a job's subprocess. The returned error covers spawn
// failures only; a script exiting non-zero is a Result with Success false.
type Runner interface {
	Run(ctx context.Context, job *Job) (*Result, error)
}

// Scheduler runs jobs on a fixed pool of workers. At most maxThreads jobs
// execute at once, and at most one job per non-parallel hook; blocked
// non-parallel jobs are parked per hook and never occupy a slot while they
// wait.
type Scheduler struct {
	runner     Runner
	maxThreads int

	mu           sync.Mutex
	cond         *sync.Cond
	queue        jobQueue
	parked       map[string][]*Job
	exclusive    map[string]struct{}
	busy         int
	nextSeq      uint64
	shuttingDown bool
	wg           sync.WaitGroup
}

// New creates a scheduler with maxThreads workers. Call Start to spawn them.
func New(runner Runner, maxThreads int) *Scheduler {
	if maxThreads < 1 {
		maxThreads = 1
	}
	s := &Scheduler{
		runner:     runner,
		maxThreads: maxThreads,
		parked:     make(map[string][]*Job),
		exclusive:  make(map[string]struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start spawns the worker pool.
func (s *Scheduler) Start() {
	for i := 0; i < s.maxThreads; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	log.Info().Int("max_threads", s.maxThreads).Msg("Scheduler started")
}

// Submit enqueues a job without blocking. It fails only once shutdown has
// begun.
func (s *Scheduler) Submit(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown {
		return ErrShuttingDown
	}

	job.seq = s.nextSeq
	s.nextSeq++
	s.queue.push(job)
	s.updateGaugesLocked()
	s.cond.Signal()

	log.Debug().
		Str("job", job.ID).
		Str("hook", job.Hook.Name).
		Int("priority", job.Priority).
		Msg("Job queued")

	return nil
}

// Stats returns a consistent snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Scheduler) statsLocked() Stats {
	queued := s.queue.Len()
	for _, jobs := range s.parked {
		queued += len(jobs)
	}
	return Stats{
		QueuedJobs:  queued,
		BusyThreads: s.busy,
		MaxThreads:  s.maxThreads,
	}
}

func (s *Scheduler) updateGaugesLocked() {
	stats := s.statsLocked()
	metrics.UpdateSchedulerStats(stats.QueuedJobs, stats.BusyThreads)
}

// BeginShutdown stops the scheduler from accepting new submissions: Submit
// fails with ErrShuttingDown, idle workers exit and busy workers finish
// their current job. Running subprocesses are never killed. Call Stop to
// wait for the workers. Safe to call more than once.
func (s *Scheduler) BeginShutdown() {
	s.mu.Lock()
	s.shuttingDown = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Stop begins shutdown if BeginShutdown has not run yet and returns once
// every slot is free, or with the context's error if it expires first (the
// workers still drain in the background).
func (s *Scheduler) Stop(ctx context.Context) error {
	s.BeginShutdown()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	s.mu.Lock()
	for {
		if s.shuttingDown {
			s.mu.Unlock()
			return
		}

		job := s.nextReadyLocked()
		if job == nil {
			s.cond.Wait()
			continue
		}

		if !job.Parallel {
			s.exclusive[job.Hook.Name] = struct{}{}
		}
		s.busy++
		s.updateGaugesLocked()
		s.mu.Unlock()

		s.execute(id, job)

		s.mu.Lock()
		s.busy--
		if !job.Parallel {
			delete(s.exclusive, job.Hook.Name)
			s.unparkLocked(job.Hook.Name)
		}
		s.updateGaugesLocked()
		s.cond.Broadcast()
	}
}

// nextReadyLocked pops the highest-priority ready job. Non-parallel jobs
// whose hook is already running are parked aside; they re-enter the queue
// with their original arrival order when that hook finishes.
func (s *Scheduler) nextReadyLocked() *Job {
	for {
		job := s.queue.pop()
		if job == nil {
			return nil
		}
		if job.Parallel {
			return job
		}
		if _, running := s.exclusive[job.Hook.Name]; !running {
			return job
		}
		s.parked[job.Hook.Name] = append(s.parked[job.Hook.Name], job)
	}
}

func (s *Scheduler) unparkLocked(hookName string) {
	jobs := s.parked[hookName]
	if len(jobs) == 0 {
		return
	}
	delete(s.parked, hookName)
	for _, job := range jobs {
		s.queue.push(job)
	}
}

// execute runs one job to completion. Nothing that happens inside the
// subprocess can fail the worker: spawn errors and non-zero exits are
// recorded and logged only.
func (s *Scheduler) execute(worker int, job *Job) {
	log.Debug().
		Int("worker", worker).
		Str("job", job.ID).
		Str("hook", job.Hook.Name).
		Msg("Job started")

	start := time.Now()
	// Shutdown must not kill running scripts, so the runner gets a context
	// detached from any cancellation.
	result, err := s.runner.Run(context.Background(), job)
	duration := time.Since(start)

	switch {
	case err != nil:
		metrics.RecordJob(job.Hook.Name, "spawn_error", duration)
		log.Error().
			Err(err).
			Str("job", job.ID).
			Str("hook", job.Hook.Name).
			Msg("Failed to spawn hook script")
	case result.Success:
		metrics.RecordJob(job.Hook.Name, "success", result.Duration)
		log.Info().
			Str("job", job.ID).
			Str("hook", job.Hook.Name).
			Dur("duration", result.Duration).
			Msg("Job completed")
	default:
		metrics.RecordJob(job.Hook.Name, "failure", result.Duration)
		log.Warn().
			Str("job", job.ID).
			Str("hook", job.Hook.Name).
			Int("exit_code", result.ExitCode).
			Dur("duration", result.Duration).
			Msg("Hook script failed")
	}
}
