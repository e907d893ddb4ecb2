package examclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/examtimer"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
)

const submitTimeout = 15 * time.Second

// ErrAlreadySubmitted is returned by StartAttempt when the exam was
// already handed in.
var ErrAlreadySubmitted = errors.New("exam already submitted")

// API is the part of Client an Attempt needs.
type API interface {
	GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
	ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.QuestionForStudent, error)
	GetMySubmission(ctx context.Context, examID uuid.UUID) (*model.SubmissionView, error)
	Autosave(ctx context.Context, examID uuid.UUID, answers []model.SubmittedAnswer, seq int64) error
	Submit(ctx context.Context, examID uuid.UUID, answers []model.SubmittedAnswer) (*model.SubmitResponse, error)
}

// Attempt is one student's sitting of one exam. The draft is autosaved on
// a fixed interval and submitted either on request or when the countdown
// expires. A failed submit leaves the attempt open and the autosaver
// running so it can be retried. If every retry after expiry fails, the
// last autosaved draft is graded server-side when the exam closes.
type Attempt struct {
	api       API
	Exam      *model.Exam
	Questions []model.QuestionForStudent
	Draft     *examtimer.Draft
	Timer     *examtimer.Timer
	saver     *examtimer.Autosaver
	log       zerolog.Logger

	// retryDelay spaces submit attempts after the countdown expires.
	retryDelay time.Duration

	submitMu  sync.Mutex
	finished  bool
	done      chan struct{}
	result    *model.SubmitResponse
	submitErr error
}

// StartAttempt loads the exam and its questions and restores any saved
// draft. The countdown does not run until Run.
func StartAttempt(ctx context.Context, api API, examID uuid.UUID, autosaveInterval time.Duration, log zerolog.Logger) (*Attempt, error) {
	exam, err := api.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	questions, err := api.ListQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	a := &Attempt{
		api:        api,
		Exam:       exam,
		Questions:  questions,
		Draft:      examtimer.NewDraft(ids),
		log:        log.With().Str("component", "attempt").Str("exam_id", examID.String()).Logger(),
		done:       make(chan struct{}),
		retryDelay: 2 * time.Second,
	}

	saved, err := api.GetMySubmission(ctx, examID)
	if err != nil {
		return nil, err
	}
	if saved != nil {
		if saved.GradingStatus == model.GradingStatusGraded {
			return nil, ErrAlreadySubmitted
		}
		items := make([]model.AnswerItem, len(saved.Answers))
		for i, r := range saved.Answers {
			items[i] = model.AnswerItem{QuestionID: r.QuestionID, SelectedOption: r.SelectedOption}
		}
		a.Draft.Restore(items, saved.Seq)
	}

	a.Timer = examtimer.New(exam.TimerMinutes, a.expire)
	a.saver = examtimer.NewAutosaver(autosaveInterval, a.save, a.log)
	return a, nil
}

// Run starts the autosaver and the one-second countdown and blocks until
// the attempt is submitted or ctx is cancelled.
func (a *Attempt) Run(ctx context.Context) (*model.SubmitResponse, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	return a.run(ctx, ticker.C)
}

func (a *Attempt) run(ctx context.Context, ticks <-chan time.Time) (*model.SubmitResponse, error) {
	a.saver.Start(ctx)
	defer a.saver.Stop()

	go func() {
		if err := a.Timer.Run(ctx, ticks); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn().Err(err).Msg("Countdown stopped")
		}
	}()

	select {
	case <-a.done:
		return a.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit hands in the current draft. Calls are serialized and at most one
// succeeds; once the attempt is finished later calls return the same
// outcome. A transient failure is returned and leaves the attempt open.
func (a *Attempt) Submit(ctx context.Context) (*model.SubmitResponse, error) {
	a.submitMu.Lock()
	defer a.submitMu.Unlock()
	if a.finished {
		return a.result, a.submitErr
	}

	res, err := a.api.Submit(ctx, a.Exam.ID, a.Draft.Answers())
	switch {
	case err == nil:
		a.log.Info().Float64("score", res.Score).Msg("Submitted")
		a.finish(res, nil)
	case IsCode(err, response.ErrAlreadySubmitted):
		a.log.Warn().Msg("Exam was already submitted")
		a.finish(nil, err)
	default:
		a.log.Error().Err(err).Msg("Submit failed")
	}
	return res, err
}

// finish records the final outcome. Callers hold submitMu.
func (a *Attempt) finish(res *model.SubmitResponse, err error) {
	a.finished = true
	a.result, a.submitErr = res, err
	a.saver.Stop()
	close(a.done)
}

// Done is closed once the attempt has been submitted.
func (a *Attempt) Done() <-chan struct{} { return a.done }

func (a *Attempt) Result() (*model.SubmitResponse, error) {
	select {
	case <-a.done:
		return a.result, a.submitErr
	default:
		return nil, nil
	}
}

// SaveStatus is the autosave indicator.
func (a *Attempt) SaveStatus() examtimer.SaveStatus { return a.saver.Status() }

// expire submits when the countdown reaches zero, retrying transient
// failures until submitTimeout runs out. After that the attempt is closed
// with the last error.
func (a *Attempt) expire() {
	a.log.Info().Msg("Time is up, submitting")
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	var err error
	for {
		if _, err = a.Submit(ctx); err == nil || a.isDone() {
			return
		}
		select {
		case <-ctx.Done():
			a.submitMu.Lock()
			if !a.finished {
				a.log.Error().Err(err).Msg("Giving up on submit, the last autosave will be graded")
				a.finish(nil, err)
			}
			a.submitMu.Unlock()
			return
		case <-time.After(a.retryDelay):
		}
	}
}

func (a *Attempt) isDone() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func (a *Attempt) save(ctx context.Context) error {
	answers, seq := a.Draft.Snapshot()
	return a.api.Autosave(ctx, a.Exam.ID, answers, seq)
}
