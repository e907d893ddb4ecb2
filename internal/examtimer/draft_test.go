package examtimer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraft_SnapshotContainsEveryQuestion(t *testing.T) {
	q1, q2 := uuid.New(), uuid.New()
	d := NewDraft([]uuid.UUID{q1, q2})

	require.NoError(t, d.Select(q1, "A"))
	answers, seq := d.Snapshot()

	require.Len(t, answers, 2)
	assert.Equal(t, q1, answers[0].QuestionID)
	assert.Equal(t, "A", *answers[0].SelectedOption)
	assert.Equal(t, q2, answers[1].QuestionID)
	assert.Nil(t, answers[1].SelectedOption)
	assert.EqualValues(t, 1, seq)

	_, seq = d.Snapshot()
	assert.EqualValues(t, 2, seq)
	assert.Equal(t, 1, d.Answered())
}

func TestDraft_SnapshotIsACopy(t *testing.T) {
	q1 := uuid.New()
	d := NewDraft([]uuid.UUID{q1})
	require.NoError(t, d.Select(q1, "A"))

	answers := d.Answers()
	*answers[0].SelectedOption = "Z"

	got, ok := d.Selected(q1)
	assert.True(t, ok)
	assert.Equal(t, "A", got)
}

func TestDraft_UnknownQuestion(t *testing.T) {
	d := NewDraft([]uuid.UUID{uuid.New()})
	assert.ErrorIs(t, d.Select(uuid.New(), "A"), ErrUnknownQuestion)
}

func TestDraft_Restore(t *testing.T) {
	q1, q2 := uuid.New(), uuid.New()
	d := NewDraft([]uuid.UUID{q1, q2})
	b := "B"

	d.Restore([]model.AnswerItem{
		{QuestionID: q2, SelectedOption: &b},
		{QuestionID: uuid.New(), SelectedOption: &b},
	}, 7)

	got, ok := d.Selected(q2)
	assert.True(t, ok)
	assert.Equal(t, "B", got)
	_, seq := d.Snapshot()
	assert.EqualValues(t, 8, seq)

	d.Restore(nil, 3)
	_, seq = d.Snapshot()
	assert.EqualValues(t, 9, seq)

	d.Clear(q2)
	assert.Equal(t, 0, d.Answered())
}
