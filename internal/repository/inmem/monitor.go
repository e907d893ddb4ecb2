package inmem

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/repository"
)

type monitorRepository struct{ db *DB }

func NewMonitorRepository(db *DB) *monitorRepository { return &monitorRepository{db: db} }

func (r *monitorRepository) GetProgress(_ context.Context, examID uuid.UUID) ([]repository.StudentProgress, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []repository.StudentProgress
	for k, s := range r.db.sessions {
		if k.examID != examID {
			continue
		}
		p := repository.StudentProgress{
			StudentID:     k.studentID,
			GradingStatus: s.GradingStatus,
			Score:         s.Score,
			Seq:           s.Seq,
			UpdatedAt:     s.UpdatedAt,
		}
		if u, ok := r.db.users[k.studentID]; ok {
			p.Name = u.Name
		}
		for _, a := range s.Answers {
			if a.SelectedOption != nil {
				p.Answered++
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
