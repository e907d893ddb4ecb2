// Package scoring grades submitted answers against answer keys.
//
// Score is a pure function: it reads nothing but its arguments, so the same
// inputs always give the same Result and it can be re-run for regrading.
package scoring

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
)

var (
	// ErrQuestionNotFound is returned when a submitted question id has no
	// answer key. The whole call fails; nothing is partially scored.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrDuplicateQuestion is returned when one question is answered twice.
	ErrDuplicateQuestion = errors.New("duplicate question in submission")
)

// Keys maps a question id to its answer key and point value.
type Keys map[uuid.UUID]model.AnswerKey

// Result is the outcome of grading one submission.
type Result struct {
	Score    float64            `json:"score"`
	MaxScore float64            `json:"max_score"`
	Correct  int                `json:"correct"`
	Answers  []model.AnswerItem `json:"answers"`
}

// Score compares every submitted option to its key by exact string equality
// and sums the points of the matches. Answers keeps the submission order.
func Score(keys Keys, submitted []model.SubmittedAnswer) (Result, error) {
	res := Result{Answers: make([]model.AnswerItem, 0, len(submitted))}
	seen := make(map[uuid.UUID]struct{}, len(submitted))

	for _, a := range submitted {
		key, ok := keys[a.QuestionID]
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, a.QuestionID)
		}
		if _, dup := seen[a.QuestionID]; dup {
			return Result{}, fmt.Errorf("%w: %s", ErrDuplicateQuestion, a.QuestionID)
		}
		seen[a.QuestionID] = struct{}{}

		correct := a.SelectedOption != nil && *a.SelectedOption == key.Key
		if correct {
			res.Score += key.Points
			res.Correct++
		}
		res.Answers = append(res.Answers, model.AnswerItem{
			QuestionID:     a.QuestionID,
			SelectedOption: a.SelectedOption,
			IsCorrect:      correct,
		})
	}

	for _, k := range keys {
		res.MaxScore += k.Points
	}
	return res, nil
}

// Submitted converts stored answer items back to a submission, dropping
// any previous grading. Used when finalizing a draft or regrading.
func Submitted(items []model.AnswerItem) []model.SubmittedAnswer {
	out := make([]model.SubmittedAnswer, len(items))
	for i, it := range items {
		out[i] = model.SubmittedAnswer{QuestionID: it.QuestionID, SelectedOption: it.SelectedOption}
	}
	return out
}
