package scheduler

import (
	"context"
	"time"

	"licensegate/logger"
)

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs on tickers until its context is cancelled.
type Scheduler struct {
	jobs []Job
	done chan struct{}
}

func New(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs, done: make(chan struct{})}
}

// Start runs every job once immediately and then on its interval. It returns
// at once; Wait blocks until all job loops have exited.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info("Scheduler started with %d job(s)", len(s.jobs))

	remaining := make(chan struct{}, len(s.jobs))
	for _, job := range s.jobs {
		go func(job Job) {
			defer func() { remaining <- struct{}{} }()
			s.loop(ctx, job)
		}(job)
	}

	go func() {
		for range s.jobs {
			<-remaining
		}
		close(s.done)
	}()
}

// Wait blocks until every job loop has stopped.
func (s *Scheduler) Wait() {
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	runJob(ctx, job)
	if job.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Debug("Scheduler tick: %s", job.Name)
			runJob(ctx, job)
		}
	}
}

func runJob(ctx context.Context, job Job) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		logger.WithFields(map[string]interface{}{
			"job":   job.Name,
			"error": err.Error(),
		}).Error("Scheduled job failed")
		return
	}
	logger.WithFields(map[string]interface{}{
		"job":         job.Name,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Scheduled job finished")
}
