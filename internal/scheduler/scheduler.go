// Package scheduler fires the sync engines at fixed times of day or on a
// fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"attendance-sync-api/internal/model"

	"github.com/rs/zerolog"
)

var timeOfDayPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// TimeOfDay is a wall-clock time in the scheduler's location.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimes reads a list of HH:MM entries. Malformed entries are dropped
// with a warning.
func ParseTimes(entries []string, logger zerolog.Logger) []TimeOfDay {
	var out []TimeOfDay
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		m := timeOfDayPattern.FindStringSubmatch(raw)
		if m == nil {
			logger.Warn().Str("entry", raw).Msg("ignoring malformed schedule time")
			continue
		}
		h, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		out = append(out, TimeOfDay{Hour: h, Minute: minute})
	}
	return out
}

// Job is one scheduled engine.
type Job struct {
	Name string
	// Times takes priority over Interval when set.
	Times      []TimeOfDay
	Interval   time.Duration
	RunAtStart bool
	Run        func(ctx context.Context, trigger model.Trigger)
}

// NextFire returns when job fires next after now and the trigger it fires
// with. Times are read in now's location.
func NextFire(now time.Time, job Job) (time.Time, model.Trigger) {
	if len(job.Times) == 0 {
		return now.Add(job.Interval), model.TriggerInterval
	}

	var next time.Time
	for _, t := range job.Times {
		at := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
		if !at.After(now) {
			at = time.Date(now.Year(), now.Month(), now.Day()+1, t.Hour, t.Minute, 0, 0, now.Location())
		}
		if next.IsZero() || at.Before(next) {
			next = at
		}
	}
	return next, model.TriggerCron
}

// Scheduler owns the timers of every registered job.
type Scheduler struct {
	jobs   []Job
	logger zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler for jobs. Jobs without times and without a
// positive interval are rejected.
func New(logger zerolog.Logger, jobs ...Job) (*Scheduler, error) {
	for _, j := range jobs {
		if j.Run == nil {
			return nil, fmt.Errorf("job %q has no run function", j.Name)
		}
		if len(j.Times) == 0 && j.Interval <= 0 {
			return nil, fmt.Errorf("job %q needs schedule times or a positive interval", j.Name)
		}
	}
	return &Scheduler{jobs: jobs, logger: logger}, nil
}

// Start launches one goroutine per job. It is a no-op when already started.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		job := job
		if len(job.Times) > 0 {
			times := make([]string, len(job.Times))
			for i, t := range job.Times {
				times[i] = t.String()
			}
			s.logger.Info().Str("job", job.Name).Strs("times", times).Msg("scheduled at fixed times")
		} else {
			s.logger.Info().Str("job", job.Name).Dur("interval", job.Interval).Msg("scheduled on interval")
		}

		if job.RunAtStart {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				job.Run(ctx, model.TriggerStartup)
			}()
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, job)
		}()
	}
}

// Stop cancels every timer and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Serve runs the scheduler until ctx ends, for use under a supervisor.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

func (s *Scheduler) String() string {
	return "scheduler"
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	next, trigger := NextFire(time.Now(), job)
	for {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		job.Run(ctx, trigger)

		now := time.Now()
		if trigger == model.TriggerInterval {
			// ticks missed while the job ran are dropped
			for !next.After(now) {
				next = next.Add(job.Interval)
			}
			continue
		}
		next, trigger = NextFire(now, job)
	}
}
