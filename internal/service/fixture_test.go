package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository/inmem"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu   sync.Mutex
	keys map[uuid.UUID]map[uuid.UUID]model.AnswerKey
	gens map[uuid.UUID]int64
	sets int
}

func newMemCache() *memCache {
	return &memCache{
		keys: make(map[uuid.UUID]map[uuid.UUID]model.AnswerKey),
		gens: make(map[uuid.UUID]int64),
	}
}

func (c *memCache) Generation(_ context.Context, examID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[examID], nil
}

func (c *memCache) Get(_ context.Context, examID uuid.UUID) (map[uuid.UUID]model.AnswerKey, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, ok := c.keys[examID]
	return k, ok, nil
}

func (c *memCache) Set(_ context.Context, examID uuid.UUID, gen int64, keys map[uuid.UUID]model.AnswerKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[examID] != gen {
		return ErrStaleAnswerKeys
	}
	c.keys[examID] = keys
	c.sets++
	return nil
}

func (c *memCache) Invalidate(_ context.Context, examID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, examID)
	c.gens[examID]++
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.MonitorEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.MonitorEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type recordingQueue struct {
	reason string
	ids    []uuid.UUID
}

func (q *recordingQueue) EnqueueFinalize(_ context.Context, reason string, ids ...uuid.UUID) error {
	q.reason = reason
	q.ids = append(q.ids, ids...)
	return nil
}

type fixture struct {
	db        *inmem.DB
	exams     ExamStore
	questions QuestionStore
	sessions  AnswerSessionStore
	users     UserStore
	classes   ClassStore

	cache  *memCache
	events *recordingPublisher
	queue  *recordingQueue

	examSvc     *ExamService
	questionSvc *QuestionService
	answerSvc   *AnswerService

	class   model.Class
	teacher model.CallerIdentity
	other   model.CallerIdentity
	admin   model.CallerIdentity
	student model.CallerIdentity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := inmem.NewDB()
	f := &fixture{
		db:        db,
		exams:     inmem.NewExamRepository(db),
		questions: inmem.NewQuestionRepository(db),
		sessions:  inmem.NewAnswerSessionRepository(db),
		users:     inmem.NewUserRepository(db),
		classes:   inmem.NewClassRepository(db),
		cache:     newMemCache(),
		events:    &recordingPublisher{},
		queue:     &recordingQueue{},
	}
	log := zerolog.Nop()
	f.examSvc = NewExamService(f.exams, f.classes, f.cache, log)
	f.questionSvc = NewQuestionService(f.exams, f.questions, f.cache, "test-salt", log)
	f.answerSvc = NewAnswerService(f.exams, f.classes, f.sessions, f.questionSvc, f.events, f.queue, log)

	ctx := context.Background()
	f.class = model.Class{Name: "XI IPA 1", GradeLevel: 11}
	require.NoError(t, f.classes.Create(ctx, &f.class))

	f.teacher = f.addUser(t, "guru1", model.RoleTeacher, nil)
	f.other = f.addUser(t, "guru2", model.RoleTeacher, nil)
	f.admin = f.addUser(t, "admin", model.RoleAdmin, nil)
	f.student = f.addUser(t, "siswa1", model.RoleStudent, &f.class.ID)
	return f
}

func (f *fixture) addUser(t *testing.T, username string, role model.Role, classID *int) model.CallerIdentity {
	t.Helper()
	u := &model.User{Username: username, Name: username, Role: role, ClassID: classID}
	require.NoError(t, f.users.Create(context.Background(), u))
	return model.CallerIdentity{ID: u.ID, Role: u.Role, ClassID: u.ClassID}
}

func (f *fixture) createExam(t *testing.T, status model.ExamStatus, shuffle bool) *model.Exam {
	t.Helper()
	ctx := context.Background()
	exam, err := f.examSvc.Create(ctx, f.teacher, model.CreateExamRequest{
		Title:            "Matematika Dasar",
		ClassID:          f.class.ID,
		Category:         model.ExamCategoryDaily,
		TimerMinutes:     1,
		ShuffleQuestions: &shuffle,
	})
	require.NoError(t, err)
	if status != model.ExamStatusDraft {
		exam, err = f.examSvc.Update(ctx, exam.ID, f.teacher, model.UpdateExamRequest{Status: status})
		require.NoError(t, err)
	}
	return exam
}

// addQuestions adds one question per key with options A..D and 3 points,
// optionally overriding points per question.
func (f *fixture) addQuestions(t *testing.T, examID uuid.UUID, keys []string, points ...float64) []model.Question {
	t.Helper()
	no := false
	out := make([]model.Question, len(keys))
	for i, k := range keys {
		p := 3.0
		if i < len(points) {
			p = points[i]
		}
		q, err := f.questionSvc.AddQuestion(context.Background(), examID, f.teacher, model.AddQuestionRequest{
			QuestionText:   "Soal",
			Options:        []string{"A", "B", "C", "D"},
			AnswerKey:      k,
			Points:         &p,
			ShuffleOptions: &no,
			OrderNum:       i + 1,
		})
		require.NoError(t, err)
		out[i] = *q
	}
	return out
}

func opt(s string) *string { return &s }

func answersFor(questions []model.Question, picks ...string) []model.SubmittedAnswer {
	out := make([]model.SubmittedAnswer, len(picks))
	for i, p := range picks {
		out[i] = model.SubmittedAnswer{QuestionID: questions[i].ID}
		if p != "" {
			out[i].SelectedOption = opt(p)
		}
	}
	return out
}
