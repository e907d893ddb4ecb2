package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// ExamService handles exam business logic.
type ExamService struct {
	exams   ExamStore
	classes ClassStore
	cache   AnswerKeyCache
	log     zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(exams ExamStore, classes ClassStore, cache AnswerKeyCache, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams:   exams,
		classes: classes,
		cache:   cache,
		log:     log.With().Str("component", "exam_service").Logger(),
	}
}

// loadExam fetches an exam and maps a missing row to ErrNotFound.
func loadExam(ctx context.Context, exams ExamStore, id uuid.UUID) (*model.Exam, error) {
	exam, err := exams.GetByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("exam %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// checkStudentAccess rejects students outside the exam's class and hides
// exams that are still being drafted.
func checkStudentAccess(exam *model.Exam, caller model.CallerIdentity) error {
	if caller.ClassID == nil || *caller.ClassID != exam.ClassID {
		return ErrForbidden
	}
	if exam.Status == model.ExamStatusDraft {
		return ErrExamNotAvailable
	}
	return nil
}

// Get returns exam metadata. Students only see published exams of their class.
func (s *ExamService) Get(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity) (*model.Exam, error) {
	exam, err := loadExam(ctx, s.exams, examID)
	if err != nil {
		return nil, err
	}
	if caller.IsStudent() {
		if err := checkStudentAccess(exam, caller); err != nil {
			return nil, err
		}
	}
	return exam, nil
}

// ListByClass lists a class's exams. Students may only list their own
// class and never see drafts.
func (s *ExamService) ListByClass(ctx context.Context, classID int, caller model.CallerIdentity) ([]model.Exam, error) {
	if caller.IsStudent() && (caller.ClassID == nil || *caller.ClassID != classID) {
		return nil, ErrForbidden
	}

	exams, err := s.exams.ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	out := make([]model.Exam, 0, len(exams))
	for _, e := range exams {
		if caller.IsStudent() && e.Status == model.ExamStatusDraft {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Create inserts a new exam as DRAFT owned by the caller.
func (s *ExamService) Create(ctx context.Context, caller model.CallerIdentity, req model.CreateExamRequest) (*model.Exam, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}
	if req.StartTime != nil && req.EndTime != nil && !req.EndTime.After(*req.StartTime) {
		return nil, fmt.Errorf("end_time must be after start_time: %w", ErrValidation)
	}
	if _, err := s.classes.GetByID(ctx, req.ClassID); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("class %d: %w", req.ClassID, ErrNotFound)
		}
		return nil, fmt.Errorf("get class: %w", err)
	}

	exam := &model.Exam{
		Title:            req.Title,
		ClassID:          req.ClassID,
		CreatedBy:        caller.ID,
		Category:         req.Category,
		TimerMinutes:     req.TimerMinutes,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Status:           model.ExamStatusDraft,
		ShuffleQuestions: true,
	}
	if req.ShuffleQuestions != nil {
		exam.ShuffleQuestions = *req.ShuffleQuestions
	}

	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().Str("exam_id", exam.ID.String()).Int("created_by", caller.ID).Msg("Exam created")
	return exam, nil
}

// statusRank orders the lifecycle; status may only move forward.
var statusRank = map[model.ExamStatus]int{
	model.ExamStatusDraft:    0,
	model.ExamStatusOngoing:  1,
	model.ExamStatusFinished: 2,
}

// Update applies the non-zero fields of req. Owner or admin only.
func (s *ExamService) Update(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity, req model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := loadExam(ctx, s.exams, examID)
	if err != nil {
		return nil, err
	}
	if !exam.OwnedBy(caller) {
		return nil, ErrForbidden
	}

	if req.Title != "" {
		exam.Title = req.Title
	}
	if req.Category != "" {
		exam.Category = req.Category
	}
	if req.TimerMinutes != 0 {
		exam.TimerMinutes = req.TimerMinutes
	}
	if req.StartTime != nil {
		exam.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		exam.EndTime = req.EndTime
	}
	if req.ShuffleQuestions != nil {
		exam.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.Status != "" {
		if statusRank[req.Status] < statusRank[exam.Status] {
			return nil, fmt.Errorf("%s to %s: %w", exam.Status, req.Status, ErrInvalidTransition)
		}
		exam.Status = req.Status
	}
	if exam.StartTime != nil && exam.EndTime != nil && !exam.EndTime.After(*exam.StartTime) {
		return nil, fmt.Errorf("end_time must be after start_time: %w", ErrValidation)
	}

	if err := s.exams.Update(ctx, exam); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return exam, nil
}

// Delete removes an exam with its questions and sessions. Owner or admin only.
func (s *ExamService) Delete(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity) error {
	exam, err := loadExam(ctx, s.exams, examID)
	if err != nil {
		return err
	}
	if !exam.OwnedBy(caller) {
		return ErrForbidden
	}

	if err := s.exams.Delete(ctx, examID); err != nil {
		if isNoRows(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete exam: %w", err)
	}

	if err := s.cache.Invalidate(ctx, examID); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to invalidate answer key cache")
	}
	s.log.Info().Str("exam_id", examID.String()).Int("deleted_by", caller.ID).Msg("Exam deleted")
	return nil
}
