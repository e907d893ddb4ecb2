package model

import "github.com/google/uuid"

// Question represents a single multiple-choice exam question.
type Question struct {
	ID             uuid.UUID `json:"id"`
	ExamID         uuid.UUID `json:"exam_id"`
	QuestionText   string    `json:"question_text"`
	Options        []string  `json:"options"`
	AnswerKey      string    `json:"answer_key"`
	Points         float64   `json:"points"`
	ShuffleOptions bool      `json:"shuffle_options"`
	OrderNum       int       `json:"order_num"`
}

// QuestionForStudent is the student projection of a question. It has no
// answer key field at all, so nothing can leak through serialization.
type QuestionForStudent struct {
	ID           uuid.UUID `json:"id"`
	ExamID       uuid.UUID `json:"exam_id"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
	Points       float64   `json:"points"`
	OrderNum     int       `json:"order_num"`
}

// ForStudent strips the answer key.
func (q *Question) ForStudent() QuestionForStudent {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return QuestionForStudent{
		ID:           q.ID,
		ExamID:       q.ExamID,
		QuestionText: q.QuestionText,
		Options:      opts,
		Points:       q.Points,
		OrderNum:     q.OrderNum,
	}
}

// AnswerKey is the grading data of one question. Internal only.
type AnswerKey struct {
	Key    string  `json:"k"`
	Points float64 `json:"p"`
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	QuestionText   string   `json:"question_text" binding:"required,min=1,max=2000"`
	Options        []string `json:"options" binding:"required,min=2,max=10,distinct_options,dive,required,max=500"`
	AnswerKey      string   `json:"answer_key" binding:"required,max=500"`
	Points         *float64 `json:"points" binding:"omitempty,gt=0,lte=1000"`
	ShuffleOptions *bool    `json:"shuffle_options" binding:"omitempty"`
	OrderNum       int      `json:"order_num" binding:"min=0"`
}

// UpdateQuestionRequest replaces the editable fields of a question.
type UpdateQuestionRequest = AddQuestionRequest
