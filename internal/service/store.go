package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
)

// The store interfaces below are satisfied by the pgx repositories and by
// the in-memory tables in repository/inmem. Missing rows are reported as
// pgx.ErrNoRows by both.

type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListByClass(ctx context.Context, classID int) ([]model.Exam, error)
	Create(ctx context.Context, e *model.Exam) error
	Update(ctx context.Context, e *model.Exam) error
	Delete(ctx context.Context, id uuid.UUID) error
	StartDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	FinishDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	Create(ctx context.Context, q *model.Question) error
	Update(ctx context.Context, q *model.Question) error
	Delete(ctx context.Context, id uuid.UUID) error
	AnswerKeys(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]model.AnswerKey, error)
}

type AnswerSessionStore interface {
	GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.StudentAnswerSession, error)
	UpsertDraft(ctx context.Context, examID uuid.UUID, studentID int, answers []model.AnswerItem, seq int64) (*model.StudentAnswerSession, error)
	FinalizeGraded(ctx context.Context, examID uuid.UUID, studentID int, answers []model.AnswerItem, score float64, submittedAt time.Time) (*model.StudentAnswerSession, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.StudentAnswerSession, error)
	ListIDsByStatus(ctx context.Context, examID uuid.UUID, status model.GradingStatus) ([]uuid.UUID, error)
	BulkGrade(ctx context.Context, updates []repository.GradeUpdate) ([]uuid.UUID, error)
	ListResultsByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResultRow, int, error)
	ListScoresByClass(ctx context.Context, classID int) ([]model.ClassScoreRow, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ListStudentsByClass(ctx context.Context, classID int) ([]model.User, error)
	Create(ctx context.Context, u *model.User) error
}

type ClassStore interface {
	GetByID(ctx context.Context, id int) (*model.Class, error)
	List(ctx context.Context) ([]model.Class, error)
	Create(ctx context.Context, c *model.Class) error
}

// AnswerKeyCache is a read-through cache of an exam's answer keys.
// Invalidate bumps the exam's generation. Set writes only while the
// generation still equals gen, read before the keys were loaded, and
// returns ErrStaleAnswerKeys otherwise.
type AnswerKeyCache interface {
	Get(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]model.AnswerKey, bool, error)
	Generation(ctx context.Context, examID uuid.UUID) (int64, error)
	Set(ctx context.Context, examID uuid.UUID, gen int64, keys map[uuid.UUID]model.AnswerKey) error
	Invalidate(ctx context.Context, examID uuid.UUID) error
}

// EventPublisher delivers monitor events. Delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.MonitorEvent) error
}

// FinalizeEnqueuer hands sessions to the finalize worker.
type FinalizeEnqueuer interface {
	EnqueueFinalize(ctx context.Context, reason string, sessionIDs ...uuid.UUID) error
}

const (
	FinalizeReasonExamEnded = "exam_ended"
	FinalizeReasonRegrade   = "regrade"
)
