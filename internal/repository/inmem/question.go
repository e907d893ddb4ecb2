package inmem

import (
	"context"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-quiz/internal/model"
)

type questionRepository struct {
	db      *DB
	created map[uuid.UUID]int
}

func NewQuestionRepository(db *DB) *questionRepository {
	return &questionRepository{db: db, created: make(map[uuid.UUID]int)}
}

func cloneQuestion(q *model.Question) model.Question {
	c := *q
	c.Options = slices.Clone(q.Options)
	return c
}

func (r *questionRepository) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []model.Question
	for _, q := range r.db.questions {
		if q.ExamID == examID {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderNum != out[j].OrderNum {
			return out[i].OrderNum < out[j].OrderNum
		}
		return r.created[out[i].ID] < r.created[out[j].ID]
	})
	return out, nil
}

func (r *questionRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Question, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	q, ok := r.db.questions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := cloneQuestion(q)
	return &c, nil
}

func (r *questionRepository) Create(_ context.Context, q *model.Question) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	q.ID = uuid.New()
	r.created[q.ID] = r.db.nextID()
	c := cloneQuestion(q)
	r.db.questions[q.ID] = &c
	return nil
}

func (r *questionRepository) Update(_ context.Context, q *model.Question) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.questions[q.ID]; !ok {
		return pgx.ErrNoRows
	}
	c := cloneQuestion(q)
	r.db.questions[q.ID] = &c
	return nil
}

func (r *questionRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.questions[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.db.questions, id)
	return nil
}

func (r *questionRepository) AnswerKeys(_ context.Context, examID uuid.UUID) (map[uuid.UUID]model.AnswerKey, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	keys := make(map[uuid.UUID]model.AnswerKey)
	for id, q := range r.db.questions {
		if q.ExamID == examID {
			keys[id] = model.AnswerKey{Key: q.AnswerKey, Points: q.Points}
		}
	}
	return keys, nil
}
