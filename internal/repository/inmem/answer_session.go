package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
)

type answerSessionRepository struct{ db *DB }

func NewAnswerSessionRepository(db *DB) *answerSessionRepository {
	return &answerSessionRepository{db: db}
}

func (r *answerSessionRepository) GetByExamAndStudent(_ context.Context, examID uuid.UUID, studentID int) (*model.StudentAnswerSession, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	s, ok := r.db.sessions[sessionKey{examID, studentID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneSession(s), nil
}

func (r *answerSessionRepository) UpsertDraft(_ context.Context, examID uuid.UUID, studentID int, answers []model.AnswerItem, seq int64) (*model.StudentAnswerSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := sessionKey{examID, studentID}
	s, ok := r.db.sessions[key]
	if !ok {
		now := r.db.now()
		s = &model.StudentAnswerSession{
			ID:            uuid.New(),
			ExamID:        examID,
			StudentID:     studentID,
			Answers:       cloneAnswers(answers),
			GradingStatus: model.GradingStatusPending,
			Seq:           seq,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		r.db.sessions[key] = s
		return cloneSession(s), nil
	}

	if s.GradingStatus != model.GradingStatusPending || (seq != 0 && seq < s.Seq) {
		return nil, pgx.ErrNoRows
	}
	s.Answers = cloneAnswers(answers)
	if seq > s.Seq {
		s.Seq = seq
	}
	s.UpdatedAt = r.db.now()
	return cloneSession(s), nil
}

func (r *answerSessionRepository) FinalizeGraded(_ context.Context, examID uuid.UUID, studentID int, answers []model.AnswerItem, score float64, submittedAt time.Time) (*model.StudentAnswerSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := sessionKey{examID, studentID}
	s, ok := r.db.sessions[key]
	if !ok {
		now := r.db.now()
		s = &model.StudentAnswerSession{ID: uuid.New(), ExamID: examID, StudentID: studentID, CreatedAt: now}
		r.db.sessions[key] = s
	} else if s.GradingStatus != model.GradingStatusPending {
		return nil, pgx.ErrNoRows
	}

	s.Answers = cloneAnswers(answers)
	s.Score = score
	s.GradingStatus = model.GradingStatusGraded
	at := submittedAt
	s.SubmittedAt = &at
	s.UpdatedAt = r.db.now()
	return cloneSession(s), nil
}

func (r *answerSessionRepository) GetByIDs(_ context.Context, ids []uuid.UUID) ([]model.StudentAnswerSession, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.StudentAnswerSession
	for _, s := range r.db.sessions {
		if want[s.ID] {
			out = append(out, *cloneSession(s))
		}
	}
	return out, nil
}

func (r *answerSessionRepository) ListIDsByStatus(_ context.Context, examID uuid.UUID, status model.GradingStatus) ([]uuid.UUID, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var ids []uuid.UUID
	for k, s := range r.db.sessions {
		if k.examID == examID && s.GradingStatus == status {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (r *answerSessionRepository) BulkGrade(_ context.Context, updates []repository.GradeUpdate) ([]uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	byID := make(map[uuid.UUID]*model.StudentAnswerSession, len(r.db.sessions))
	for _, s := range r.db.sessions {
		byID[s.ID] = s
	}

	var written []uuid.UUID
	for _, u := range updates {
		s, ok := byID[u.SessionID]
		if !ok || s.GradingStatus != u.ExpectStatus || !s.UpdatedAt.Equal(u.UpdatedAt) {
			continue
		}
		s.Answers = cloneAnswers(u.Answers)
		s.Score = u.Score
		s.GradingStatus = model.GradingStatusGraded
		now := r.db.now()
		if s.SubmittedAt == nil {
			s.SubmittedAt = &now
		}
		s.UpdatedAt = now
		written = append(written, s.ID)
	}
	return written, nil
}

func (r *answerSessionRepository) ListResultsByExam(_ context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResultRow, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var rows []model.ExamResultRow
	for k, s := range r.db.sessions {
		if k.examID != examID {
			continue
		}
		row := model.ExamResultRow{
			SessionID:     s.ID,
			StudentID:     s.StudentID,
			Score:         s.Score,
			AnswerCount:   len(s.Answers),
			GradingStatus: s.GradingStatus,
			SubmittedAt:   s.SubmittedAt,
		}
		if u, ok := r.db.users[s.StudentID]; ok {
			row.StudentName = u.Name
			row.Username = u.Username
		}
		for _, a := range s.Answers {
			if a.IsCorrect {
				row.CorrectCount++
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StudentName < rows[j].StudentName })

	total := len(rows)
	if limit > 0 {
		if offset > len(rows) {
			offset = len(rows)
		}
		end := offset + limit
		if end > len(rows) {
			end = len(rows)
		}
		rows = rows[offset:end]
	}
	return rows, total, nil
}

func (r *answerSessionRepository) ListScoresByClass(_ context.Context, classID int) ([]model.ClassScoreRow, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var rows []model.ClassScoreRow
	for k, s := range r.db.sessions {
		u, ok := r.db.users[k.studentID]
		if !ok || u.ClassID == nil || *u.ClassID != classID {
			continue
		}
		row := model.ClassScoreRow{
			ExamID:        k.examID,
			StudentID:     u.ID,
			StudentName:   u.Name,
			Score:         s.Score,
			GradingStatus: s.GradingStatus,
			SubmittedAt:   s.SubmittedAt,
		}
		if e, ok := r.db.exams[k.examID]; ok {
			row.ExamTitle = e.Title
			row.Category = e.Category
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StudentName < rows[j].StudentName })
	return rows, nil
}
