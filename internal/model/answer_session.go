package model

import (
	"time"

	"github.com/google/uuid"
)

// GradingStatus enumerates the states of a StudentAnswerSession.
type GradingStatus string

const (
	GradingStatusPending GradingStatus = "pending"
	GradingStatusGraded  GradingStatus = "graded"
)

// SubmittedAnswer is one answer as sent by the client. A nil
// SelectedOption means the question was left blank.
type SubmittedAnswer struct {
	QuestionID     uuid.UUID `json:"question_id" binding:"required"`
	SelectedOption *string   `json:"selected_option"`
}

// AnswerItem is one stored answer. IsCorrect is only meaningful once graded.
type AnswerItem struct {
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedOption *string   `json:"selected_option"`
	IsCorrect      bool      `json:"is_correct"`
}

// StudentAnswerSession is the single record of one student's attempt at one
// exam. Exactly one row exists per (exam_id, student_id).
type StudentAnswerSession struct {
	ID            uuid.UUID     `json:"id"`
	ExamID        uuid.UUID     `json:"exam_id"`
	StudentID     int           `json:"student_id"`
	Answers       []AnswerItem  `json:"answers"`
	Score         float64       `json:"score"`
	GradingStatus GradingStatus `json:"grading_status"`
	Seq           int64         `json:"seq"`
	SubmittedAt   *time.Time    `json:"submitted_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsGraded reports whether the session has been finalized.
func (s *StudentAnswerSession) IsGraded() bool {
	return s.GradingStatus == GradingStatusGraded
}

// AutosaveRequest carries the full current draft. Answers replace the
// stored array wholesale. Seq is optional and must not decrease.
type AutosaveRequest struct {
	Answers []SubmittedAnswer `json:"answers" binding:"required,dive"`
	Seq     int64             `json:"seq" binding:"min=0"`
}

// SubmitRequest is the final answer payload.
type SubmitRequest struct {
	Answers []SubmittedAnswer `json:"answers" binding:"required,dive"`
}

// SubmitResponse is returned by a successful submit.
type SubmitResponse struct {
	Score  float64               `json:"score"`
	Result *StudentAnswerSession `json:"result"`
}

// ReviewedAnswer is a stored answer joined with its question text.
type ReviewedAnswer struct {
	QuestionID     uuid.UUID `json:"question_id"`
	QuestionText   string    `json:"question_text"`
	Options        []string  `json:"options"`
	Points         float64   `json:"points"`
	SelectedOption *string   `json:"selected_option"`
	IsCorrect      bool      `json:"is_correct"`
}

// SubmissionView is the caller's own session with question data joined in.
type SubmissionView struct {
	ID            uuid.UUID        `json:"id"`
	ExamID        uuid.UUID        `json:"exam_id"`
	Score         float64          `json:"score"`
	GradingStatus GradingStatus    `json:"grading_status"`
	Seq           int64            `json:"seq"`
	SubmittedAt   *time.Time       `json:"submitted_at,omitempty"`
	Answers       []ReviewedAnswer `json:"answers"`
}

// ExamResultRow is one row of the per-exam results view.
type ExamResultRow struct {
	SessionID     uuid.UUID     `json:"session_id"`
	StudentID     int           `json:"student_id"`
	StudentName   string        `json:"student_name"`
	Username      string        `json:"username"`
	Score         float64       `json:"score"`
	CorrectCount  int           `json:"correct_count"`
	AnswerCount   int           `json:"answer_count"`
	GradingStatus GradingStatus `json:"grading_status"`
	SubmittedAt   *time.Time    `json:"submitted_at,omitempty"`
}

// ClassScoreRow is one row of the per-class scores view.
type ClassScoreRow struct {
	ExamID        uuid.UUID     `json:"exam_id"`
	ExamTitle     string        `json:"exam_title"`
	Category      ExamCategory  `json:"category"`
	StudentID     int           `json:"student_id"`
	StudentName   string        `json:"student_name"`
	Score         float64       `json:"score"`
	GradingStatus GradingStatus `json:"grading_status"`
	SubmittedAt   *time.Time    `json:"submitted_at,omitempty"`
}

// MonitorEvent is published on the exam monitor channel.
type MonitorEvent struct {
	Type      string    `json:"type"`
	ExamID    uuid.UUID `json:"exam_id"`
	StudentID int       `json:"student_id"`
	Score     *float64  `json:"score,omitempty"`
	Seq       int64     `json:"seq,omitempty"`
	At        time.Time `json:"at"`
}

const (
	MonitorEventAutosaved = "autosaved"
	MonitorEventSubmitted = "submitted"
	MonitorEventFinalized = "finalized"
)
