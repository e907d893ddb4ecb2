package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/scoring"
	"github.com/stemsi/exstem-quiz/internal/service"
)

const (
	FinalizeBatchTimeout = 2 * time.Second
	FinalizePollTimeout  = 1 * time.Second
	FinalizeMaxAttempts  = 5
	FinalizePopBackoff   = 1 * time.Second
)

// JobSource is the queue side the worker consumes. FinalizeQueue implements it.
type JobSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*FinalizeJob, error)
	Requeue(ctx context.Context, jobs ...FinalizeJob) error
}

// SessionGrader reads sessions and writes grading results.
type SessionGrader interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.StudentAnswerSession, error)
	BulkGrade(ctx context.Context, updates []repository.GradeUpdate) ([]uuid.UUID, error)
}

// KeySource resolves the answer keys of an exam.
type KeySource interface {
	AnswerKeys(ctx context.Context, examID uuid.UUID) (scoring.Keys, error)
}

// FinalizeWorker grades sessions nobody submitted before the exam ended and
// re-scores graded sessions on regrade. Every write is guarded by the
// status and version the session was read with, so a concurrent submit
// always wins and nothing is graded twice.
type FinalizeWorker struct {
	queue     JobSource
	sessions  SessionGrader
	keys      KeySource
	events    service.EventPublisher
	batchSize int
	log       zerolog.Logger

	// popBackoff is the pause after a failed pop before polling again.
	popBackoff time.Duration
}

func NewFinalizeWorker(
	queue JobSource,
	sessions SessionGrader,
	keys KeySource,
	events service.EventPublisher,
	batchSize int,
	log zerolog.Logger,
) *FinalizeWorker {
	if batchSize < 1 {
		batchSize = 50
	}
	return &FinalizeWorker{
		queue:      queue,
		sessions:   sessions,
		keys:       keys,
		events:     events,
		batchSize:  batchSize,
		log:        log.With().Str("component", "finalize_worker").Logger(),
		popBackoff: FinalizePopBackoff,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *FinalizeWorker) Start(ctx context.Context) {
	w.log.Info().Int("batch_size", w.batchSize).Msg("FinalizeWorker started")

	batch := make([]FinalizeJob, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= FinalizeBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			job, err := w.queue.Pop(ctx, FinalizePollTimeout)
			if err != nil {
				if ctx.Err() == nil {
					w.log.Error().Err(err).Dur("backoff", w.popBackoff).Msg("Queue pop failed")
				}
				// Back off so an unreachable Redis is not hammered; the
				// pending batch is still flushed on the next pass.
				select {
				case <-ctx.Done():
				case <-time.After(w.popBackoff):
				}
				continue
			}
			if job == nil {
				continue
			}
			batch = append(batch, *job)
		}
	}
}

// ----------------------------------------------------------------
// Batch grading
// ----------------------------------------------------------------

// flushSafe grades one batch. It returns the ids that were written.
func (w *FinalizeWorker) flushSafe(ctx context.Context, batch []FinalizeJob) []uuid.UUID {
	if len(batch) == 0 {
		return nil
	}

	jobs := make(map[uuid.UUID]FinalizeJob, len(batch))
	ids := make([]uuid.UUID, 0, len(batch))
	for _, j := range batch {
		if _, dup := jobs[j.SessionID]; dup {
			continue
		}
		jobs[j.SessionID] = j
		ids = append(ids, j.SessionID)
	}

	sessions, err := w.sessions.GetByIDs(ctx, ids)
	if err != nil {
		w.log.Error().Err(err).Int("jobs", len(ids)).Msg("Load sessions failed")
		w.retry(ctx, valuesOf(jobs))
		return nil
	}

	keysByExam := make(map[uuid.UUID]scoring.Keys)
	updates := make([]repository.GradeUpdate, 0, len(sessions))
	scores := make(map[uuid.UUID]*model.StudentAnswerSession, len(sessions))
	var failed []FinalizeJob

	for i := range sessions {
		sess := &sessions[i]
		job := jobs[sess.ID]

		if sess.IsGraded() && job.Reason != service.FinalizeReasonRegrade {
			continue
		}

		keys, ok := keysByExam[sess.ExamID]
		if !ok {
			keys, err = w.keys.AnswerKeys(ctx, sess.ExamID)
			if err != nil {
				w.log.Error().Err(err).Str("exam_id", sess.ExamID.String()).Msg("Load answer keys failed")
				failed = append(failed, job)
				continue
			}
			keysByExam[sess.ExamID] = keys
		}

		res, err := scoring.Score(keys, knownAnswers(keys, sess.Answers))
		if err != nil {
			w.log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Dropping unscorable session")
			continue
		}

		updates = append(updates, repository.GradeUpdate{
			SessionID:    sess.ID,
			Answers:      res.Answers,
			Score:        res.Score,
			ExpectStatus: sess.GradingStatus,
			UpdatedAt:    sess.UpdatedAt,
		})
		sess.Score = res.Score
		scores[sess.ID] = sess
	}

	written := w.write(ctx, updates, jobs, &failed)

	// Rows the guard rejected changed after they were read. Try them again
	// so a late autosave still gets finalized.
	done := make(map[uuid.UUID]struct{}, len(written))
	for _, id := range written {
		done[id] = struct{}{}
	}
	for _, u := range updates {
		if _, ok := done[u.SessionID]; !ok && !containsJob(failed, u.SessionID) {
			failed = append(failed, jobs[u.SessionID])
		}
	}
	w.retry(ctx, failed)

	for _, id := range written {
		sess := scores[id]
		score := sess.Score
		w.publish(ctx, model.MonitorEvent{
			Type:      model.MonitorEventFinalized,
			ExamID:    sess.ExamID,
			StudentID: sess.StudentID,
			Score:     &score,
		})
	}

	if len(written) > 0 {
		w.log.Info().Int("graded", len(written)).Int("batch", len(batch)).Msg("Sessions finalized")
	}
	return written
}

// write tries the bulk statement first and falls back to one row at a time.
func (w *FinalizeWorker) write(ctx context.Context, updates []repository.GradeUpdate, jobs map[uuid.UUID]FinalizeJob, failed *[]FinalizeJob) []uuid.UUID {
	if len(updates) == 0 {
		return nil
	}

	written, err := w.sessions.BulkGrade(ctx, updates)
	if err == nil {
		return written
	}
	w.log.Warn().Err(err).Msg("bulk grade failed, using fallback")

	written = written[:0]
	for _, u := range updates {
		ids, err := w.sessions.BulkGrade(ctx, []repository.GradeUpdate{u})
		if err != nil {
			w.log.Error().Err(err).Str("session_id", u.SessionID.String()).Msg("single grade failed")
			*failed = append(*failed, jobs[u.SessionID])
			continue
		}
		written = append(written, ids...)
	}
	return written
}

func (w *FinalizeWorker) retry(ctx context.Context, jobs []FinalizeJob) {
	requeue := make([]FinalizeJob, 0, len(jobs))
	for _, j := range jobs {
		j.Attempt++
		if j.Attempt >= FinalizeMaxAttempts {
			w.log.Error().Str("session_id", j.SessionID.String()).Str("reason", j.Reason).Msg("Finalize attempts exhausted, dropping job")
			continue
		}
		requeue = append(requeue, j)
	}
	if err := w.queue.Requeue(ctx, requeue...); err != nil {
		w.log.Error().Err(err).Int("jobs", len(requeue)).Msg("Requeue failed")
	}
}

func (w *FinalizeWorker) publish(ctx context.Context, ev model.MonitorEvent) {
	if w.events == nil {
		return
	}
	ev.At = time.Now()
	if err := w.events.Publish(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		w.log.Warn().Err(err).Str("exam_id", ev.ExamID.String()).Msg("Failed to publish monitor event")
	}
}

// knownAnswers drops answers to questions deleted since they were saved.
func knownAnswers(keys scoring.Keys, items []model.AnswerItem) []model.SubmittedAnswer {
	kept := make([]model.AnswerItem, 0, len(items))
	for _, it := range items {
		if _, ok := keys[it.QuestionID]; ok {
			kept = append(kept, it)
		}
	}
	return scoring.Submitted(kept)
}

func valuesOf(jobs map[uuid.UUID]FinalizeJob) []FinalizeJob {
	out := make([]FinalizeJob, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j)
	}
	return out
}

func containsJob(jobs []FinalizeJob, id uuid.UUID) bool {
	for _, j := range jobs {
		if j.SessionID == id {
			return true
		}
	}
	return false
}
