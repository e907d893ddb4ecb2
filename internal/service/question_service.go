package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/scoring"
)

// QuestionService is the only read path to questions. Student callers get
// QuestionForStudent values, which have no answer key field.
type QuestionService struct {
	exams     ExamStore
	questions QuestionStore
	cache     AnswerKeyCache
	salt      string
	log       zerolog.Logger
}

// NewQuestionService creates a new QuestionService. salt seeds the
// per-attempt shuffle.
func NewQuestionService(exams ExamStore, questions QuestionStore, cache AnswerKeyCache, salt string, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		exams:     exams,
		questions: questions,
		cache:     cache,
		salt:      salt,
		log:       log.With().Str("component", "question_service").Logger(),
	}
}

// ListForStaff returns an exam's questions with answer keys in persisted
// order. An exam without questions yields an empty list.
func (s *QuestionService) ListForStaff(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity) ([]model.Question, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}
	if _, err := loadExam(ctx, s.exams, examID); err != nil {
		return nil, err
	}

	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// ListForStudent returns an exam's questions without answer keys. When the
// exam shuffles, the order is a permutation seeded by (exam, student), so a
// reload within one attempt shows the same order.
func (s *QuestionService) ListForStudent(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity) ([]model.QuestionForStudent, error) {
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

	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	out := make([]model.QuestionForStudent, len(questions))
	for i := range questions {
		out[i] = s.project(&questions[i], caller.ID)
	}
	if exam.ShuffleQuestions {
		shuffleSeeded(attemptSeed(s.salt, examID, caller.ID), len(out), func(i, j int) {
			out[i], out[j] = out[j], out[i]
		})
	}
	return out, nil
}

// project strips the answer key and shuffles options when requested.
func (s *QuestionService) project(q *model.Question, studentID int) model.QuestionForStudent {
	sq := q.ForStudent()
	if q.ShuffleOptions {
		shuffleSeeded(attemptSeed(s.salt, q.ExamID, studentID, q.ID), len(sq.Options), func(i, j int) {
			sq.Options[i], sq.Options[j] = sq.Options[j], sq.Options[i]
		})
	}
	return sq
}

// GetForStaff returns one question with its key.
func (s *QuestionService) GetForStaff(ctx context.Context, questionID uuid.UUID, caller model.CallerIdentity) (*model.Question, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}
	return s.loadQuestion(ctx, questionID)
}

// GetForStudent returns one question without its key.
func (s *QuestionService) GetForStudent(ctx context.Context, questionID uuid.UUID, caller model.CallerIdentity) (*model.QuestionForStudent, error) {
	if !caller.IsStudent() {
		return nil, ErrForbidden
	}
	q, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	exam, err := loadExam(ctx, s.exams, q.ExamID)
	if err != nil {
		return nil, err
	}
	if err := checkStudentAccess(exam, caller); err != nil {
		return nil, err
	}
	sq := s.project(q, caller.ID)
	return &sq, nil
}

func (s *QuestionService) loadQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("question %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

// AnswerKeys returns the grading data of an exam's questions. It is used
// by scoring only and is never routed. Keys are read through the cache.
func (s *QuestionService) AnswerKeys(ctx context.Context, examID uuid.UUID) (scoring.Keys, error) {
	keys, ok, err := s.cache.Get(ctx, examID)
	if err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Answer key cache read failed, using database")
	}
	if ok {
		return keys, nil
	}

	// The generation is read before loading so an edit committed meanwhile
	// makes the write below a no-op.
	gen, genErr := s.cache.Generation(ctx, examID)

	keys, err = s.questions.AnswerKeys(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load answer keys: %w", err)
	}
	if len(keys) == 0 || genErr != nil {
		return keys, nil
	}
	switch err := s.cache.Set(ctx, examID, gen, keys); {
	case errors.Is(err, ErrStaleAnswerKeys):
		s.log.Debug().Str("exam_id", examID.String()).Msg("Answer keys changed while loading, not cached")
	case err != nil:
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Answer key cache write failed")
	}
	return keys, nil
}

// AddQuestion appends a question to an exam. Owner or admin only.
func (s *QuestionService) AddQuestion(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity, req model.AddQuestionRequest) (*model.Question, error) {
	exam, err := loadExam(ctx, s.exams, examID)
	if err != nil {
		return nil, err
	}
	if !exam.OwnedBy(caller) {
		return nil, ErrForbidden
	}

	q := &model.Question{ExamID: examID}
	if err := applyQuestionRequest(q, req); err != nil {
		return nil, err
	}
	if err := s.questions.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}

	s.invalidate(ctx, examID)
	return q, nil
}

// UpdateQuestion replaces a question's editable fields. Owner or admin only.
func (s *QuestionService) UpdateQuestion(ctx context.Context, questionID uuid.UUID, caller model.CallerIdentity, req model.UpdateQuestionRequest) (*model.Question, error) {
	q, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	exam, err := loadExam(ctx, s.exams, q.ExamID)
	if err != nil {
		return nil, err
	}
	if !exam.OwnedBy(caller) {
		return nil, ErrForbidden
	}

	if err := applyQuestionRequest(q, req); err != nil {
		return nil, err
	}
	if err := s.questions.Update(ctx, q); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update question: %w", err)
	}

	s.invalidate(ctx, q.ExamID)
	return q, nil
}

// DeleteQuestion removes a question. Owner or admin only.
func (s *QuestionService) DeleteQuestion(ctx context.Context, questionID uuid.UUID, caller model.CallerIdentity) error {
	q, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	exam, err := loadExam(ctx, s.exams, q.ExamID)
	if err != nil {
		return err
	}
	if !exam.OwnedBy(caller) {
		return ErrForbidden
	}

	if err := s.questions.Delete(ctx, questionID); err != nil {
		if isNoRows(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete question: %w", err)
	}

	s.invalidate(ctx, q.ExamID)
	return nil
}

func (s *QuestionService) invalidate(ctx context.Context, examID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, examID); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to invalidate answer key cache")
	}
}

func applyQuestionRequest(q *model.Question, req model.AddQuestionRequest) error {
	if !slices.Contains(req.Options, req.AnswerKey) {
		return ErrAnswerKeyNotInOptions
	}

	q.QuestionText = req.QuestionText
	q.Options = slices.Clone(req.Options)
	q.AnswerKey = req.AnswerKey
	q.OrderNum = req.OrderNum
	q.Points = 1
	if req.Points != nil {
		q.Points = *req.Points
	}
	q.ShuffleOptions = true
	if req.ShuffleOptions != nil {
		q.ShuffleOptions = *req.ShuffleOptions
	}
	return nil
}
