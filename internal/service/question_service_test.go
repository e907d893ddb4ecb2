package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListForStudent_HidesAnswerKey(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, model.ExamStatusOngoing, true)
	f.addQuestions(t, exam.ID, []string{"A", "B", "C"})

	qs, err := f.questionSvc.ListForStudent(context.Background(), exam.ID, f.student)
	require.NoError(t, err)
	require.Len(t, qs, 3)

	raw, err := json.Marshal(qs)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "answer_key")
}

func TestListForStudent_ShuffleStablePerStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.createExam(t, model.ExamStatusOngoing, true)
	keys := make([]string, 12)
	for i := range keys {
		keys[i] = "A"
	}
	f.addQuestions(t, exam.ID, keys)

	order := func(caller model.CallerIdentity) []uuid.UUID {
		qs, err := f.questionSvc.ListForStudent(ctx, exam.ID, caller)
		require.NoError(t, err)
		ids := make([]uuid.UUID, len(qs))
		for i, q := range qs {
			ids[i] = q.ID
		}
		return ids
	}

	first := order(f.student)
	assert.Equal(t, first, order(f.student))

	staff, err := f.questionSvc.ListForStaff(ctx, exam.ID, f.teacher)
	require.NoError(t, err)
	assert.ElementsMatch(t, first, idsOf(staff))

	// Twelve questions give 12! orders; two students colliding would mean
	// the seed ignores the student.
	other := f.addUser(t, "siswa2", model.RoleStudent, &f.class.ID)
	assert.NotEqual(t, first, order(other))
}

func TestListForStudent_NoShuffleKeepsOrder(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, model.ExamStatusOngoing, false)
	added := f.addQuestions(t, exam.ID, []string{"A", "B", "C", "D"})

	qs, err := f.questionSvc.ListForStudent(context.Background(), exam.ID, f.student)
	require.NoError(t, err)
	for i := range added {
		assert.Equal(t, added[i].ID, qs[i].ID)
		assert.Equal(t, []string{"A", "B", "C", "D"}, qs[i].Options)
	}
}

func TestListForStudent_EmptyExam(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, model.ExamStatusOngoing, true)

	qs, err := f.questionSvc.ListForStudent(context.Background(), exam.ID, f.student)
	require.NoError(t, err)
	assert.Empty(t, qs)

	_, err = f.questionSvc.ListForStudent(context.Background(), uuid.New(), f.student)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuestionEdits_OwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.createExam(t, model.ExamStatusDraft, false)
	q := f.addQuestions(t, exam.ID, []string{"A"})[0]

	req := model.UpdateQuestionRequest{
		QuestionText: "Soal baru",
		Options:      []string{"A", "B"},
		AnswerKey:    "B",
	}

	_, err := f.questionSvc.UpdateQuestion(ctx, q.ID, f.other, req)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.questionSvc.AddQuestion(ctx, exam.ID, f.other, req)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.questionSvc.DeleteQuestion(ctx, q.ID, f.other), ErrForbidden)
	_, err = f.questionSvc.AddQuestion(ctx, exam.ID, f.student, req)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.questionSvc.UpdateQuestion(ctx, q.ID, f.admin, req)
	require.NoError(t, err)
	assert.Equal(t, "B", updated.AnswerKey)
	assert.Equal(t, 1.0, updated.Points)
	assert.True(t, updated.ShuffleOptions)
}

func TestAddQuestion_KeyMustBeAnOption(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, model.ExamStatusDraft, false)

	_, err := f.questionSvc.AddQuestion(context.Background(), exam.ID, f.teacher, model.AddQuestionRequest{
		QuestionText: "Soal",
		Options:      []string{"A", "B"},
		AnswerKey:    "a",
	})
	assert.ErrorIs(t, err, ErrAnswerKeyNotInOptions)
}

func TestAnswerKeys_CacheInvalidatedOnEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.createExam(t, model.ExamStatusOngoing, false)
	q := f.addQuestions(t, exam.ID, []string{"A"})[0]

	keys, err := f.questionSvc.AnswerKeys(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", keys[q.ID].Key)
	assert.Equal(t, 1, f.cache.sets)

	_, err = f.questionSvc.AnswerKeys(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.sets)

	_, err = f.questionSvc.UpdateQuestion(ctx, q.ID, f.teacher, model.UpdateQuestionRequest{
		QuestionText: "Soal",
		Options:      []string{"A", "B"},
		AnswerKey:    "B",
	})
	require.NoError(t, err)

	keys, err = f.questionSvc.AnswerKeys(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", keys[q.ID].Key)
}

// editDuringLoad runs edit once, after the keys were read but before the
// caller gets them back.
type editDuringLoad struct {
	QuestionStore
	edit func()
}

func (s *editDuringLoad) AnswerKeys(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]model.AnswerKey, error) {
	keys, err := s.QuestionStore.AnswerKeys(ctx, examID)
	if s.edit != nil {
		edit := s.edit
		s.edit = nil
		edit()
	}
	return keys, err
}

func TestAnswerKeys_EditDuringLoadIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.createExam(t, model.ExamStatusOngoing, false)
	q := f.addQuestions(t, exam.ID, []string{"A"})[0]

	store := &editDuringLoad{QuestionStore: f.questions}
	store.edit = func() {
		_, err := f.questionSvc.UpdateQuestion(ctx, q.ID, f.teacher, model.UpdateQuestionRequest{
			QuestionText: "Soal",
			Options:      []string{"A", "B"},
			AnswerKey:    "B",
		})
		require.NoError(t, err)
	}
	svc := NewQuestionService(f.exams, store, f.cache, "test-salt", zerolog.Nop())

	keys, err := svc.AnswerKeys(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", keys[q.ID].Key, "the racing read still sees the old key")
	assert.Equal(t, 0, f.cache.sets, "keys loaded before the edit must not be cached")

	keys, err = svc.AnswerKeys(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", keys[q.ID].Key)
	assert.Equal(t, 1, f.cache.sets)

	cached, ok, err := f.cache.Get(ctx, exam.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "B", cached[q.ID].Key)
}

func TestGetForStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.createExam(t, model.ExamStatusOngoing, false)
	q := f.addQuestions(t, exam.ID, []string{"C"})[0]

	got, err := f.questionSvc.GetForStudent(ctx, q.ID, f.student)
	require.NoError(t, err)
	assert.Equal(t, q.QuestionText, got.QuestionText)

	_, err = f.questionSvc.GetForStudent(ctx, q.ID, f.teacher)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.questionSvc.GetForStaff(ctx, uuid.New(), f.teacher)
	assert.ErrorIs(t, err, ErrNotFound)
}

func idsOf(qs []model.Question) []uuid.UUID {
	ids := make([]uuid.UUID, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}
