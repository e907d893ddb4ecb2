package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// StudentProgress is one row of the live exam monitor.
type StudentProgress struct {
	StudentID     int                 `json:"student_id"`
	Name          string              `json:"name"`
	Answered      int                 `json:"answered"`
	GradingStatus model.GradingStatus `json:"grading_status"`
	Score         float64             `json:"score"`
	Seq           int64               `json:"seq"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// MonitorRepository provides data access for the live exam monitor.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// GetProgress returns the answered count and status of every student who
// has a session for the exam.
func (r *MonitorRepository) GetProgress(ctx context.Context, examID uuid.UUID) ([]StudentProgress, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.name,
		       (SELECT COUNT(*) FROM jsonb_array_elements(s.answers) a
		        WHERE a->>'selected_option' IS NOT NULL),
		       s.grading_status, s.score, s.seq, s.updated_at
		FROM student_answer_sessions s
		JOIN users u ON u.id = s.student_id
		WHERE s.exam_id = $1
		ORDER BY u.name ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress []StudentProgress
	for rows.Next() {
		var p StudentProgress
		if err := rows.Scan(&p.StudentID, &p.Name, &p.Answered, &p.GradingStatus, &p.Score, &p.Seq, &p.UpdatedAt); err != nil {
			return nil, err
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}
