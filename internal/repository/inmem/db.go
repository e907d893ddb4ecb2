// Package inmem provides map-backed stores with the same contract as the
// pgx repositories, including pgx.ErrNoRows for missing rows and the
// conditional upserts on answer sessions.
package inmem

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
)

type sessionKey struct {
	examID    uuid.UUID
	studentID int
}

// DB holds every table behind one lock.
type DB struct {
	mu sync.RWMutex

	classes   map[int]*model.Class
	users     map[int]*model.User
	exams     map[uuid.UUID]*model.Exam
	questions map[uuid.UUID]*model.Question
	sessions  map[sessionKey]*model.StudentAnswerSession

	lastID int
	clock  time.Time
}

func NewDB() *DB {
	return &DB{
		classes:   make(map[int]*model.Class),
		users:     make(map[int]*model.User),
		exams:     make(map[uuid.UUID]*model.Exam),
		questions: make(map[uuid.UUID]*model.Question),
		sessions:  make(map[sessionKey]*model.StudentAnswerSession),
		clock:     time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC),
	}
}

// now returns a strictly increasing timestamp so updated_at works as a
// row version. Callers hold mu.
func (db *DB) now() time.Time {
	db.clock = db.clock.Add(time.Microsecond)
	return db.clock
}

func (db *DB) nextID() int {
	db.lastID++
	return db.lastID
}

// SessionCount returns how many sessions exist for the pair.
func (db *DB) SessionCount(examID uuid.UUID, studentID int) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if _, ok := db.sessions[sessionKey{examID, studentID}]; ok {
		return 1
	}
	return 0
}

func cloneAnswers(items []model.AnswerItem) []model.AnswerItem {
	if items == nil {
		return []model.AnswerItem{}
	}
	out := make([]model.AnswerItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.SelectedOption != nil {
			v := *it.SelectedOption
			out[i].SelectedOption = &v
		}
	}
	return out
}

func cloneSession(s *model.StudentAnswerSession) *model.StudentAnswerSession {
	c := *s
	c.Answers = cloneAnswers(s.Answers)
	return &c
}
