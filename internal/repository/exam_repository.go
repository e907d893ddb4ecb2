package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

const examColumns = `id, title, class_id, created_by, category, timer_minutes,
	start_time, end_time, status, shuffle_questions, created_at, updated_at`

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row, e *model.Exam) error {
	return row.Scan(&e.ID, &e.Title, &e.ClassID, &e.CreatedBy, &e.Category, &e.TimerMinutes,
		&e.StartTime, &e.EndTime, &e.Status, &e.ShuffleQuestions, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	if err := scanExam(r.pool.QueryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`, id), e); err != nil {
		return nil, err
	}
	return e, nil
}

// ListByClass retrieves every exam of a class, newest first.
func (r *ExamRepository) ListByClass(ctx context.Context, classID int) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE class_id = $1 ORDER BY created_at DESC`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := scanExam(rows, &e); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, class_id, created_by, category, timer_minutes,
		                    start_time, end_time, status, shuffle_questions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.ClassID, e.CreatedBy, e.Category, e.TimerMinutes,
		e.StartTime, e.EndTime, e.Status, e.ShuffleQuestions,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update writes every editable column of e.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`UPDATE exams
		 SET title = $1, category = $2, timer_minutes = $3, start_time = $4,
		     end_time = $5, status = $6, shuffle_questions = $7, updated_at = NOW()
		 WHERE id = $8
		 RETURNING updated_at`,
		e.Title, e.Category, e.TimerMinutes, e.StartTime,
		e.EndTime, e.Status, e.ShuffleQuestions, e.ID,
	).Scan(&e.UpdatedAt)
}

// Delete removes an exam. Questions and answer sessions cascade.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// StartDue moves DRAFT exams whose start time has passed to ONGOING and
// returns their ids.
func (r *ExamRepository) StartDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.collectIDs(ctx,
		`UPDATE exams SET status = 'ONGOING', updated_at = NOW()
		 WHERE status = 'DRAFT' AND start_time IS NOT NULL AND start_time <= $1
		 RETURNING id`, now)
}

// FinishDue moves ONGOING exams whose end time has passed to FINISHED and
// returns their ids.
func (r *ExamRepository) FinishDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.collectIDs(ctx,
		`UPDATE exams SET status = 'FINISHED', updated_at = NOW()
		 WHERE status = 'ONGOING' AND end_time IS NOT NULL AND end_time <= $1
		 RETURNING id`, now)
}

func (r *ExamRepository) collectIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
