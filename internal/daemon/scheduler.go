package daemon

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/logfields"
	"git.home.luguber.info/inful/xgrab/internal/metrics"
)

// minDelay is the shortest delay scheduled as a dated one-time job; anything
// shorter starts immediately so gocron never sees a start time in the past.
const minDelay = 20 * time.Millisecond

// Scheduler wraps gocron for delayed per-bot requests and periodic jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
	recorder  metrics.Recorder

	mu      sync.Mutex
	pending map[string]uuid.UUID
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(recorder metrics.Recorder) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to create gocron scheduler").Build()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Scheduler{scheduler: s, recorder: recorder, pending: make(map[string]uuid.UUID)}, nil
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

func botTag(id uuid.UUID) string { return "bot:" + id.String() }

// RequestAfter schedules fn for bot after delay, replacing any request still
// pending for the same bot.
func (s *Scheduler) RequestAfter(bot uuid.UUID, delay time.Duration, fn func()) error {
	return s.After(botTag(bot), delay, fn)
}

// After schedules a one-time job under tag. A job already pending under the
// same tag is removed first.
func (s *Scheduler) After(tag string, delay time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.pending[tag]; ok {
		_ = s.scheduler.RemoveJob(prev)
		delete(s.pending, tag)
	}

	start := gocron.OneTimeJobStartImmediately()
	if delay >= minDelay {
		start = gocron.OneTimeJobStartDateTime(time.Now().Add(delay))
	}

	var id uuid.UUID
	job, err := s.scheduler.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(func() {
			s.mu.Lock()
			if s.pending[tag] == id {
				delete(s.pending, tag)
			}
			s.mu.Unlock()
			fn()
		}),
		gocron.WithName(tag),
		gocron.WithTags(tag),
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to schedule job").
			WithContext("tag", tag).Build()
	}
	id = job.ID()
	s.pending[tag] = id
	return nil
}

// Cancel removes a pending job for tag. It reports whether one was pending.
func (s *Scheduler) Cancel(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pending[tag]
	if ok {
		_ = s.scheduler.RemoveJob(id)
		delete(s.pending, tag)
	}
	return ok
}

// Pending reports whether a request for bot is scheduled and not yet run.
func (s *Scheduler) Pending(bot uuid.UUID) bool { return s.PendingTag(botTag(bot)) }

func (s *Scheduler) PendingTag(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[tag]
	return ok
}

// Every runs fn every interval. Overlapping runs are skipped.
func (s *Scheduler) Every(name string, interval time.Duration, fn func() error) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			err := fn()
			s.recorder.IncJobRun(name, metrics.ResultOf(err))
			if err != nil {
				slog.Error("Scheduled job failed", logfields.JobName(name), logfields.Error(err))
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to create periodic job").
			WithContext("job", name).Build()
	}
	return nil
}
