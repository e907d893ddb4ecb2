package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func threeQuestionKeys() ([]uuid.UUID, Keys) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	keys := Keys{
		ids[0]: {Key: "A", Points: 1},
		ids[1]: {Key: "B", Points: 2},
		ids[2]: {Key: "C", Points: 3},
	}
	return ids, keys
}

func answers(ids []uuid.UUID, opts ...string) []model.SubmittedAnswer {
	out := make([]model.SubmittedAnswer, len(opts))
	for i, o := range opts {
		out[i] = model.SubmittedAnswer{QuestionID: ids[i], SelectedOption: strPtr(o)}
	}
	return out
}

func TestScore(t *testing.T) {
	ids, keys := threeQuestionKeys()

	tests := []struct {
		name     string
		opts     []string
		score    float64
		correct  int
		flags    []bool
		maxScore float64
	}{
		{name: "all correct", opts: []string{"A", "B", "C"}, score: 6, correct: 3, flags: []bool{true, true, true}, maxScore: 6},
		{name: "last wrong", opts: []string{"A", "B", "D"}, score: 3, correct: 2, flags: []bool{true, true, false}, maxScore: 6},
		{name: "all wrong", opts: []string{"B", "C", "A"}, score: 0, correct: 0, flags: []bool{false, false, false}, maxScore: 6},
		{name: "case sensitive", opts: []string{"a", "B", "C"}, score: 5, correct: 2, flags: []bool{false, true, true}, maxScore: 6},
		{name: "no normalization", opts: []string{"A ", "B", "C"}, score: 5, correct: 2, flags: []bool{false, true, true}, maxScore: 6},
		{name: "partial submission", opts: []string{"A"}, score: 1, correct: 1, flags: []bool{true}, maxScore: 6},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Score(keys, answers(ids, tc.opts...))
			require.NoError(t, err)
			assert.Equal(t, tc.score, res.Score)
			assert.Equal(t, tc.correct, res.Correct)
			assert.Equal(t, tc.maxScore, res.MaxScore)
			require.Len(t, res.Answers, len(tc.opts))
			for i, flag := range tc.flags {
				assert.Equal(t, ids[i], res.Answers[i].QuestionID)
				assert.Equal(t, flag, res.Answers[i].IsCorrect, "answer %d", i)
			}
		})
	}
}

func TestScore_UnknownQuestionAbortsWholeCall(t *testing.T) {
	ids, keys := threeQuestionKeys()
	submitted := answers(ids, "A", "B", "C")
	submitted = append(submitted, model.SubmittedAnswer{QuestionID: uuid.New(), SelectedOption: strPtr("A")})

	res, err := Score(keys, submitted)
	assert.ErrorIs(t, err, ErrQuestionNotFound)
	assert.Zero(t, res.Score)
	assert.Empty(t, res.Answers)
}

func TestScore_BlankAnswerIsWrong(t *testing.T) {
	ids, keys := threeQuestionKeys()
	submitted := []model.SubmittedAnswer{{QuestionID: ids[0]}, {QuestionID: ids[1], SelectedOption: strPtr("B")}}

	res, err := Score(keys, submitted)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Score)
	assert.False(t, res.Answers[0].IsCorrect)
	assert.Nil(t, res.Answers[0].SelectedOption)
}

func TestScore_DuplicateQuestionRejected(t *testing.T) {
	ids, keys := threeQuestionKeys()
	submitted := answers([]uuid.UUID{ids[1], ids[1]}, "B", "B")

	_, err := Score(keys, submitted)
	assert.ErrorIs(t, err, ErrDuplicateQuestion)
}

func TestScore_Deterministic(t *testing.T) {
	ids, keys := threeQuestionKeys()
	submitted := answers(ids, "A", "X", "C")

	first, err := Score(keys, submitted)
	require.NoError(t, err)
	second, err := Score(keys, Submitted(first.Answers))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
