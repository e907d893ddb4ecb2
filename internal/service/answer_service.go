package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/scoring"
)

// FinishedSubmitGrace is how long after an exam closes an in-flight submit
// from a student with a pending draft is still graded.
const FinishedSubmitGrace = 2 * time.Minute

// AnswerService owns the student answer session: draft autosave, the
// one-time graded submission and the result views built on top of it.
type AnswerService struct {
	exams     ExamStore
	classes   ClassStore
	sessions  AnswerSessionStore
	questions *QuestionService
	events    EventPublisher
	queue     FinalizeEnqueuer
	log       zerolog.Logger
	now       func() time.Time
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(
	exams ExamStore,
	classes ClassStore,
	sessions AnswerSessionStore,
	questions *QuestionService,
	events EventPublisher,
	queue FinalizeEnqueuer,
	log zerolog.Logger,
) *AnswerService {
	return &AnswerService{
		exams:     exams,
		classes:   classes,
		sessions:  sessions,
		questions: questions,
		events:    events,
		queue:     queue,
		log:       log.With().Str("component", "answer_service").Logger(),
		now:       time.Now,
	}
}

// answerableExam loads an exam a student may write answers to.
func (s *AnswerService) answerableExam(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity) (*model.Exam, error) {
	if !caller.IsStudent() {
		return nil, ErrForbidden
	}
	exam, err := loadExam(ctx, s.exams, examID)
	if err != nil {
		return nil, err
	}
	if err := checkStudentAccess(exam, caller); err != nil {
		return nil, err
	}
	return exam, nil
}

// Autosave stores the student's full current draft. The stored answers
// array is replaced wholesale, never merged, so the client must always
// send every question. Repeating a payload is idempotent. A seq lower than
// the stored one is rejected with ErrStaleAutosave; seq 0 is unsequenced.
func (s *AnswerService) Autosave(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity, req model.AutosaveRequest) (*model.StudentAnswerSession, error) {
	exam, err := s.answerableExam(ctx, examID, caller)
	if err != nil {
		return nil, err
	}
	if exam.Status == model.ExamStatusFinished {
		return nil, ErrExamNotAvailable
	}

	keys, err := s.questions.AnswerKeys(ctx, examID)
	if err != nil {
		return nil, err
	}
	items, err := draftItems(keys, req.Answers)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.UpsertDraft(ctx, examID, caller.ID, items, req.Seq)
	if err != nil {
		if !isNoRows(err) {
			return nil, fmt.Errorf("upsert draft: %w", err)
		}
		return nil, s.explainRejectedDraft(ctx, examID, caller.ID)
	}

	s.publish(ctx, model.MonitorEvent{
		Type:      model.MonitorEventAutosaved,
		ExamID:    examID,
		StudentID: caller.ID,
		Seq:       sess.Seq,
	})
	return sess, nil
}

// explainRejectedDraft tells apart the two reasons a draft upsert can be
// skipped.
func (s *AnswerService) explainRejectedDraft(ctx context.Context, examID uuid.UUID, studentID int) error {
	existing, err := s.sessions.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if existing.IsGraded() {
		return ErrAlreadySubmitted
	}
	return ErrStaleAutosave
}

// draftItems checks a draft against the exam's questions without grading it.
func draftItems(keys scoring.Keys, answers []model.SubmittedAnswer) ([]model.AnswerItem, error) {
	items := make([]model.AnswerItem, 0, len(answers))
	seen := make(map[uuid.UUID]struct{}, len(answers))
	for _, a := range answers {
		if _, ok := keys[a.QuestionID]; !ok {
			return nil, fmt.Errorf("%w: %s", scoring.ErrQuestionNotFound, a.QuestionID)
		}
		if _, dup := seen[a.QuestionID]; dup {
			return nil, fmt.Errorf("%w: %s", scoring.ErrDuplicateQuestion, a.QuestionID)
		}
		seen[a.QuestionID] = struct{}{}
		items = append(items, model.AnswerItem{QuestionID: a.QuestionID, SelectedOption: a.SelectedOption})
	}
	return items, nil
}

// Submit grades the submitted answers against the question bank and
// finalizes the session. It succeeds at most once per (exam, student);
// later calls get ErrAlreadySubmitted. Scoring failures write nothing.
func (s *AnswerService) Submit(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity, answers []model.SubmittedAnswer) (*model.SubmitResponse, error) {
	exam, err := s.answerableExam(ctx, examID, caller)
	if err != nil {
		return nil, err
	}

	existing, err := s.sessions.GetByExamAndStudent(ctx, examID, caller.ID)
	switch {
	case err == nil && existing.IsGraded():
		return nil, ErrAlreadySubmitted
	case err != nil && !isNoRows(err):
		return nil, fmt.Errorf("get session: %w", err)
	}
	if exam.Status == model.ExamStatusFinished && !s.lateSubmitAllowed(exam, err == nil) {
		return nil, ErrExamNotAvailable
	}

	keys, err := s.questions.AnswerKeys(ctx, examID)
	if err != nil {
		return nil, err
	}
	res, err := scoring.Score(keys, answers)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.FinalizeGraded(ctx, examID, caller.ID, res.Answers, res.Score, s.now())
	if err != nil {
		if isNoRows(err) {
			// Lost the race against another submit or the finalize worker.
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("finalize session: %w", err)
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("student_id", caller.ID).
		Float64("score", res.Score).
		Msg("Exam submitted")

	score := res.Score
	s.publish(ctx, model.MonitorEvent{
		Type:      model.MonitorEventSubmitted,
		ExamID:    examID,
		StudentID: caller.ID,
		Score:     &score,
	})
	return &model.SubmitResponse{Score: res.Score, Result: sess}, nil
}

// lateSubmitAllowed reports whether a submit on a FINISHED exam still
// counts. Only a student with a pending draft may submit, and only within
// FinishedSubmitGrace of the exam closing.
func (s *AnswerService) lateSubmitAllowed(exam *model.Exam, hasDraft bool) bool {
	if !hasDraft {
		return false
	}
	closedAt := exam.UpdatedAt
	if exam.EndTime != nil && exam.EndTime.Before(closedAt) {
		closedAt = *exam.EndTime
	}
	return !s.now().After(closedAt.Add(FinishedSubmitGrace))
}

// GetMySubmission returns the caller's own session, pending or graded,
// joined with question text. Correctness comes from the stored flags; no
// answer key is read.
func (s *AnswerService) GetMySubmission(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity) (*model.SubmissionView, error) {
	if _, err := loadExam(ctx, s.exams, examID); err != nil {
		return nil, err
	}

	sess, err := s.sessions.GetByExamAndStudent(ctx, examID, caller.ID)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("session: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	questions, err := s.questions.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	byID := make(map[uuid.UUID]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	view := &model.SubmissionView{
		ID:            sess.ID,
		ExamID:        sess.ExamID,
		Score:         sess.Score,
		GradingStatus: sess.GradingStatus,
		Seq:           sess.Seq,
		SubmittedAt:   sess.SubmittedAt,
		Answers:       make([]model.ReviewedAnswer, 0, len(sess.Answers)),
	}
	for _, a := range sess.Answers {
		ra := model.ReviewedAnswer{
			QuestionID:     a.QuestionID,
			SelectedOption: a.SelectedOption,
			IsCorrect:      a.IsCorrect,
		}
		if q, ok := byID[a.QuestionID]; ok {
			ra.QuestionText = q.QuestionText
			ra.Options = q.Options
			ra.Points = q.Points
		}
		view.Answers = append(view.Answers, ra)
	}
	return view, nil
}

// ListResultsForExam returns a page of an exam's sessions. Staff only.
func (s *AnswerService) ListResultsForExam(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity, page, perPage int) ([]model.ExamResultRow, *response.Pagination, error) {
	if !caller.IsStaff() {
		return nil, nil, ErrForbidden
	}
	if _, err := loadExam(ctx, s.exams, examID); err != nil {
		return nil, nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	rows, total, err := s.sessions.ListResultsByExam(ctx, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}
	if rows == nil {
		rows = []model.ExamResultRow{}
	}

	return rows, response.NewPagination(page, perPage, total), nil
}

// ListScoresForClass returns every session of a class's students. Staff only.
func (s *AnswerService) ListScoresForClass(ctx context.Context, classID int, caller model.CallerIdentity) ([]model.ClassScoreRow, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}
	if _, err := s.classes.GetByID(ctx, classID); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("class %d: %w", classID, ErrNotFound)
		}
		return nil, fmt.Errorf("get class: %w", err)
	}

	rows, err := s.sessions.ListScoresByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	if rows == nil {
		rows = []model.ClassScoreRow{}
	}
	return rows, nil
}

// Regrade queues every graded session of an exam for rescoring against
// the current answer keys. On a FINISHED exam it also queues the drafts
// that were never finalized, such as those of an exam closed by hand.
// Owner or admin only. Returns the queued count.
func (s *AnswerService) Regrade(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity) (int, error) {
	exam, err := loadExam(ctx, s.exams, examID)
	if err != nil {
		return 0, err
	}
	if !exam.OwnedBy(caller) {
		return 0, ErrForbidden
	}

	graded, err := s.sessions.ListIDsByStatus(ctx, examID, model.GradingStatusGraded)
	if err != nil {
		return 0, fmt.Errorf("list graded sessions: %w", err)
	}
	if len(graded) > 0 {
		if err := s.queue.EnqueueFinalize(ctx, FinalizeReasonRegrade, graded...); err != nil {
			return 0, fmt.Errorf("enqueue regrade: %w", err)
		}
	}
	queued := len(graded)

	if exam.Status == model.ExamStatusFinished {
		pending, err := s.sessions.ListIDsByStatus(ctx, examID, model.GradingStatusPending)
		if err != nil {
			return queued, fmt.Errorf("list pending sessions: %w", err)
		}
		if len(pending) > 0 {
			if err := s.queue.EnqueueFinalize(ctx, FinalizeReasonExamEnded, pending...); err != nil {
				return queued, fmt.Errorf("enqueue pending: %w", err)
			}
		}
		queued += len(pending)
	}

	s.log.Info().Str("exam_id", examID.String()).Int("sessions", queued).Msg("Regrade queued")
	return queued, nil
}

func (s *AnswerService) publish(ctx context.Context, ev model.MonitorEvent) {
	if s.events == nil {
		return
	}
	ev.At = s.now()
	if err := s.events.Publish(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn().Err(err).Str("exam_id", ev.ExamID.String()).Str("event", ev.Type).Msg("Failed to publish monitor event")
	}
}
