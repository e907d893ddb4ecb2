package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamCategory classifies an exam.
type ExamCategory string

const (
	ExamCategoryPractice ExamCategory = "PRACTICE"
	ExamCategoryPTS      ExamCategory = "PTS" // periodic test
	ExamCategoryPAS      ExamCategory = "PAS" // final test
	ExamCategoryDaily    ExamCategory = "DAILY"
)

// ExamStatus enumerates the lifecycle states of an exam.
type ExamStatus string

const (
	ExamStatusDraft    ExamStatus = "DRAFT"
	ExamStatusOngoing  ExamStatus = "ONGOING"
	ExamStatusFinished ExamStatus = "FINISHED"
)

// Exam represents an exam entity.
type Exam struct {
	ID               uuid.UUID    `json:"id"`
	Title            string       `json:"title"`
	ClassID          int          `json:"class_id"`
	CreatedBy        int          `json:"created_by"`
	Category         ExamCategory `json:"category"`
	TimerMinutes     int          `json:"timer_minutes"`
	StartTime        *time.Time   `json:"start_time,omitempty"`
	EndTime          *time.Time   `json:"end_time,omitempty"`
	Status           ExamStatus   `json:"status"`
	ShuffleQuestions bool         `json:"shuffle_questions"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// AcceptsAnswers reports whether students may autosave or submit.
func (e *Exam) AcceptsAnswers() bool {
	return e.Status != ExamStatusDraft
}

// OwnedBy reports whether caller may mutate the exam.
func (e *Exam) OwnedBy(caller CallerIdentity) bool {
	return caller.IsAdmin() || (caller.Role == RoleTeacher && e.CreatedBy == caller.ID)
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title            string       `json:"title" binding:"required,min=3,max=255"`
	ClassID          int          `json:"class_id" binding:"required,min=1"`
	Category         ExamCategory `json:"category" binding:"required,oneof=PRACTICE PTS PAS DAILY"`
	TimerMinutes     int          `json:"timer_minutes" binding:"required,min=1,max=480"`
	StartTime        *time.Time   `json:"start_time" binding:"omitempty"`
	EndTime          *time.Time   `json:"end_time" binding:"omitempty"`
	ShuffleQuestions *bool        `json:"shuffle_questions" binding:"omitempty"`
}

// UpdateExamRequest is the payload for updating an existing exam.
// Zero values leave the stored field unchanged.
type UpdateExamRequest struct {
	Title            string       `json:"title" binding:"omitempty,min=3,max=255"`
	Category         ExamCategory `json:"category" binding:"omitempty,oneof=PRACTICE PTS PAS DAILY"`
	TimerMinutes     int          `json:"timer_minutes" binding:"omitempty,min=1,max=480"`
	StartTime        *time.Time   `json:"start_time" binding:"omitempty"`
	EndTime          *time.Time   `json:"end_time" binding:"omitempty"`
	Status           ExamStatus   `json:"status" binding:"omitempty,oneof=DRAFT ONGOING FINISHED"`
	ShuffleQuestions *bool        `json:"shuffle_questions" binding:"omitempty"`
}
