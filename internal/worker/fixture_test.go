package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/repository/inmem"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stretchr/testify/require"
)

// fakeQueue is an in-process stand-in for the Redis list.
type fakeQueue struct {
	mu       sync.Mutex
	jobs     []FinalizeJob
	requeued []FinalizeJob
	failNext int
}

func (q *fakeQueue) EnqueueFinalize(_ context.Context, reason string, ids ...uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failNext > 0 {
		q.failNext--
		return errors.New("redis unavailable")
	}
	for _, id := range ids {
		q.jobs = append(q.jobs, FinalizeJob{SessionID: id, Reason: reason})
	}
	return nil
}

func (q *fakeQueue) Requeue(_ context.Context, jobs ...FinalizeJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requeued = append(q.requeued, jobs...)
	return nil
}

func (q *fakeQueue) Pop(ctx context.Context, timeout time.Duration) (*FinalizeJob, error) {
	q.mu.Lock()
	if len(q.jobs) > 0 {
		j := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()
		return &j, nil
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

func (q *fakeQueue) pending() []FinalizeJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]FinalizeJob(nil), q.jobs...)
}

func (q *fakeQueue) retried() []FinalizeJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]FinalizeJob(nil), q.requeued...)
}

type noCache struct{}

func (noCache) Get(context.Context, uuid.UUID) (map[uuid.UUID]model.AnswerKey, bool, error) {
	return nil, false, nil
}
func (noCache) Generation(context.Context, uuid.UUID) (int64, error) { return 0, nil }
func (noCache) Set(context.Context, uuid.UUID, int64, map[uuid.UUID]model.AnswerKey) error {
	return nil
}
func (noCache) Invalidate(context.Context, uuid.UUID) error { return nil }

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

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// grader wraps a SessionGrader so tests can inject failures and races.
type grader struct {
	SessionGrader
	failBulk    bool
	afterRead   func()
	bulkCalls   int
	singleCalls int
}

func (g *grader) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.StudentAnswerSession, error) {
	rows, err := g.SessionGrader.GetByIDs(ctx, ids)
	if g.afterRead != nil {
		g.afterRead()
	}
	return rows, err
}

func (g *grader) BulkGrade(ctx context.Context, updates []repository.GradeUpdate) ([]uuid.UUID, error) {
	if len(updates) > 1 {
		g.bulkCalls++
		if g.failBulk {
			return nil, errors.New("statement timeout")
		}
	} else {
		g.singleCalls++
	}
	return g.SessionGrader.BulkGrade(ctx, updates)
}

type fixture struct {
	db        *inmem.DB
	exams     service.ExamStore
	questions service.QuestionStore
	sessions  service.AnswerSessionStore
	keys      *service.QuestionService
	queue     *fakeQueue
	events    *recordingPublisher
	grader    *grader
	worker    *FinalizeWorker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := inmem.NewDB()
	f := &fixture{
		db:        db,
		exams:     inmem.NewExamRepository(db),
		questions: inmem.NewQuestionRepository(db),
		sessions:  inmem.NewAnswerSessionRepository(db),
		queue:     &fakeQueue{},
		events:    &recordingPublisher{},
	}
	f.keys = service.NewQuestionService(f.exams, f.questions, noCache{}, "salt", zerolog.Nop())
	f.grader = &grader{SessionGrader: f.sessions}
	f.worker = NewFinalizeWorker(f.queue, f.grader, f.keys, f.events, 10, zerolog.Nop())
	return f
}

func (f *fixture) createExam(t *testing.T, status model.ExamStatus) *model.Exam {
	t.Helper()
	e := &model.Exam{Title: "Fisika", ClassID: 1, CreatedBy: 1, Category: model.ExamCategoryDaily, TimerMinutes: 30, Status: status}
	require.NoError(t, f.exams.Create(context.Background(), e))
	return e
}

// addQuestions adds one question per key, two points each.
func (f *fixture) addQuestions(t *testing.T, examID uuid.UUID, keys ...string) []model.Question {
	t.Helper()
	out := make([]model.Question, len(keys))
	for i, k := range keys {
		q := &model.Question{ExamID: examID, QuestionText: "Soal", Options: []string{"A", "B", "C", "D"}, AnswerKey: k, Points: 2, OrderNum: i + 1}
		require.NoError(t, f.questions.Create(context.Background(), q))
		out[i] = *q
	}
	return out
}

func (f *fixture) draft(t *testing.T, examID uuid.UUID, studentID int, questions []model.Question, picks ...string) *model.StudentAnswerSession {
	t.Helper()
	items := make([]model.AnswerItem, len(picks))
	for i, p := range picks {
		items[i] = model.AnswerItem{QuestionID: questions[i].ID, SelectedOption: &p}
	}
	sess, err := f.sessions.UpsertDraft(context.Background(), examID, studentID, items, 0)
	require.NoError(t, err)
	return sess
}

func (f *fixture) session(t *testing.T, examID uuid.UUID, studentID int) *model.StudentAnswerSession {
	t.Helper()
	sess, err := f.sessions.GetByExamAndStudent(context.Background(), examID, studentID)
	require.NoError(t, err)
	return sess
}
