package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	JobNotification = "notification"
	JobYearRollover = "year_rollover"
)

type RunFunc func(context.Context) (any, error)

// Service runs background work on a single worker goroutine fed by a bounded queue, plus
// cron-scheduled jobs that go through the same queue.
type Service struct {
	log   zerolog.Logger
	queue chan job
	cron  *cron.Cron
	now   func() time.Time
	wg    sync.WaitGroup
}

type job struct {
	Type string
	Run  RunFunc
}

func New(log zerolog.Logger, queueSize int) *Service {
	if queueSize <= 0 {
		queueSize = 128
	}
	return &Service{
		log:   log.With().Str("component", "jobs").Logger(),
		queue: make(chan job, queueSize),
		cron:  cron.New(cron.WithLocation(time.UTC)),
		now:   time.Now,
	}
}

func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.worker(ctx)
	s.cron.Start()
}

// Stop halts the scheduler and waits for the worker to exit. ctx passed to Start must be
// cancelled first.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// Enqueue hands run to the worker without blocking. A full queue drops the job.
func (s *Service) Enqueue(jobType string, run RunFunc) bool {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		s.log.Warn().Str("jobType", jobType).Msg("job queue full, dropping job")
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run RunFunc) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// Schedule enqueues run whenever the cron spec fires.
func (s *Service) Schedule(spec, jobType string, run RunFunc) error {
	if _, err := s.cron.AddFunc(spec, func() { s.Enqueue(jobType, run) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", jobType, spec, err)
	}
	s.log.Info().Str("jobType", jobType).Str("spec", spec).Msg("job scheduled")
	return nil
}

// ScheduleRollover runs year-end processing into the calendar year in which the schedule fires.
func (s *Service) ScheduleRollover(spec string, rollover func(ctx context.Context, toYear int) (any, error)) error {
	return s.Schedule(spec, JobYearRollover, func(ctx context.Context) (any, error) {
		return rollover(ctx, s.now().UTC().Year())
	})
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			_, _ = s.runJob(ctx, j)
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (details any, err error) {
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.Type, r)
		}
		event := s.log.Info()
		status := "completed"
		if err != nil {
			event = s.log.Warn().Err(err)
			status = "failed"
		}
		event.Str("jobType", j.Type).
			Str("status", status).
			Dur("duration", s.now().Sub(started)).
			Interface("details", details).
			Msg("job finished")
	}()
	return j.Run(ctx)
}
