package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-quiz/internal/model"
)

type examRepository struct{ db *DB }

func NewExamRepository(db *DB) *examRepository { return &examRepository{db: db} }

func (r *examRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	e, ok := r.db.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *e
	return &c, nil
}

func (r *examRepository) ListByClass(_ context.Context, classID int) ([]model.Exam, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []model.Exam
	for _, e := range r.db.exams {
		if e.ClassID == classID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *examRepository) Create(_ context.Context, e *model.Exam) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = r.db.now()
	e.UpdatedAt = e.CreatedAt
	c := *e
	r.db.exams[e.ID] = &c
	return nil
}

func (r *examRepository) Update(_ context.Context, e *model.Exam) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.exams[e.ID]; !ok {
		return pgx.ErrNoRows
	}
	e.UpdatedAt = r.db.now()
	c := *e
	r.db.exams[e.ID] = &c
	return nil
}

// Delete cascades to questions and sessions like the foreign keys do.
func (r *examRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.exams[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.db.exams, id)
	for qid, q := range r.db.questions {
		if q.ExamID == id {
			delete(r.db.questions, qid)
		}
	}
	for k := range r.db.sessions {
		if k.examID == id {
			delete(r.db.sessions, k)
		}
	}
	return nil
}

func (r *examRepository) StartDue(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.transition(model.ExamStatusDraft, model.ExamStatusOngoing, func(e *model.Exam) *time.Time { return e.StartTime }, now), nil
}

func (r *examRepository) FinishDue(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.transition(model.ExamStatusOngoing, model.ExamStatusFinished, func(e *model.Exam) *time.Time { return e.EndTime }, now), nil
}

func (r *examRepository) transition(from, to model.ExamStatus, at func(*model.Exam) *time.Time, now time.Time) []uuid.UUID {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var ids []uuid.UUID
	for id, e := range r.db.exams {
		t := at(e)
		if e.Status == from && t != nil && !t.After(now) {
			e.Status = to
			e.UpdatedAt = r.db.now()
			ids = append(ids, id)
		}
	}
	return ids
}
