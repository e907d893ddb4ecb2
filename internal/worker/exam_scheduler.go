package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/service"
)

const sweepTimeout = time.Minute

// LifecycleStore moves exams along their schedule.
type LifecycleStore interface {
	StartDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	FinishDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// PendingLister finds sessions still waiting for a grade.
type PendingLister interface {
	ListIDsByStatus(ctx context.Context, examID uuid.UUID, status model.GradingStatus) ([]uuid.UUID, error)
}

// ExamScheduler opens and closes exams by their start and end times and
// hands every unsubmitted attempt of a closed exam to the finalize worker.
type ExamScheduler struct {
	exams    LifecycleStore
	sessions PendingLister
	queue    service.FinalizeEnqueuer
	spec     string
	log      zerolog.Logger
	now      func() time.Time

	mu sync.Mutex
	// exams whose pending sessions could not be enqueued yet
	unqueued map[uuid.UUID]struct{}
}

func NewExamScheduler(exams LifecycleStore, sessions PendingLister, queue service.FinalizeEnqueuer, spec string, log zerolog.Logger) *ExamScheduler {
	return &ExamScheduler{
		exams:    exams,
		sessions: sessions,
		queue:    queue,
		spec:     spec,
		log:      log.With().Str("component", "exam_scheduler").Logger(),
		now:      time.Now,
		unqueued: make(map[uuid.UUID]struct{}),
	}
}

// Start registers the sweep and runs it until ctx is cancelled.
func (s *ExamScheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&s.log))))

	if _, err := c.AddFunc(s.spec, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		defer cancel()
		if err := s.Sweep(sweepCtx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("Exam sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("add cron %q: %w", s.spec, err)
	}

	c.Start()
	s.log.Info().Str("spec", s.spec).Msg("ExamScheduler started")

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		s.log.Info().Msg("ExamScheduler stopped")
	}()
	return nil
}

// Sweep runs one pass: open due exams, close due exams, queue their
// pending sessions.
func (s *ExamScheduler) Sweep(ctx context.Context) error {
	now := s.now()

	started, err := s.exams.StartDue(ctx, now)
	if err != nil {
		return fmt.Errorf("start due exams: %w", err)
	}
	for _, id := range started {
		s.log.Info().Str("exam_id", id.String()).Msg("Exam started")
	}

	finished, err := s.exams.FinishDue(ctx, now)
	if err != nil {
		return fmt.Errorf("finish due exams: %w", err)
	}

	s.mu.Lock()
	for _, id := range finished {
		s.log.Info().Str("exam_id", id.String()).Msg("Exam finished")
		s.unqueued[id] = struct{}{}
	}
	pending := make([]uuid.UUID, 0, len(s.unqueued))
	for id := range s.unqueued {
		pending = append(pending, id)
	}
	s.mu.Unlock()

	var firstErr error
	for _, examID := range pending {
		if err := s.queuePending(ctx, examID); err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Queue pending sessions failed, will retry")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.mu.Lock()
		delete(s.unqueued, examID)
		s.mu.Unlock()
	}
	return firstErr
}

func (s *ExamScheduler) queuePending(ctx context.Context, examID uuid.UUID) error {
	ids, err := s.sessions.ListIDsByStatus(ctx, examID, model.GradingStatusPending)
	if err != nil {
		return fmt.Errorf("list pending sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.queue.EnqueueFinalize(ctx, service.FinalizeReasonExamEnded, ids...); err != nil {
		return fmt.Errorf("enqueue finalize: %w", err)
	}
	s.log.Info().Str("exam_id", examID.String()).Int("sessions", len(ids)).Msg("Pending sessions queued for finalize")
	return nil
}
