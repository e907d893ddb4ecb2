package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

const sessionColumns = `id, exam_id, student_id, answers, score, grading_status, seq,
	submitted_at, created_at, updated_at`

// GradeUpdate is one row of a bulk grading write. The row is only written
// while it still has ExpectStatus and the UpdatedAt it was read with.
type GradeUpdate struct {
	SessionID    uuid.UUID
	Answers      []model.AnswerItem
	Score        float64
	ExpectStatus model.GradingStatus
	UpdatedAt    time.Time
}

// AnswerSessionRepository handles student answer session data access.
// Every write is a single statement keyed by (exam_id, student_id) or id.
type AnswerSessionRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerSessionRepository creates a new AnswerSessionRepository.
func NewAnswerSessionRepository(pool *pgxpool.Pool) *AnswerSessionRepository {
	return &AnswerSessionRepository{pool: pool}
}

func scanSession(row pgx.Row, s *model.StudentAnswerSession) error {
	return row.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.Answers, &s.Score, &s.GradingStatus,
		&s.Seq, &s.SubmittedAt, &s.CreatedAt, &s.UpdatedAt)
}

// GetByExamAndStudent retrieves the session of one student for one exam.
func (r *AnswerSessionRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.StudentAnswerSession, error) {
	s := &model.StudentAnswerSession{}
	err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM student_answer_sessions
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID), s)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpsertDraft creates a pending session or replaces its answers array
// wholesale. The write is skipped, and pgx.ErrNoRows returned, when the
// session is already graded or seq is older than the stored one. A seq of
// zero is unsequenced and always accepted.
func (r *AnswerSessionRepository) UpsertDraft(ctx context.Context, examID uuid.UUID, studentID int, answers []model.AnswerItem, seq int64) (*model.StudentAnswerSession, error) {
	if answers == nil {
		answers = []model.AnswerItem{}
	}
	s := &model.StudentAnswerSession{}
	err := scanSession(r.pool.QueryRow(ctx,
		`INSERT INTO student_answer_sessions AS s (exam_id, student_id, answers, score, grading_status, seq)
		 VALUES ($1, $2, $3, 0, 'pending', $4)
		 ON CONFLICT (exam_id, student_id) DO UPDATE
		 SET answers = EXCLUDED.answers,
		     seq = GREATEST(s.seq, EXCLUDED.seq),
		     updated_at = NOW()
		 WHERE s.grading_status = 'pending'
		   AND (EXCLUDED.seq = 0 OR EXCLUDED.seq >= s.seq)
		 RETURNING `+sessionColumns,
		examID, studentID, answers, seq), s)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FinalizeGraded writes a graded result. It only transitions an absent or
// pending session; pgx.ErrNoRows means the session was already graded.
func (r *AnswerSessionRepository) FinalizeGraded(ctx context.Context, examID uuid.UUID, studentID int, answers []model.AnswerItem, score float64, submittedAt time.Time) (*model.StudentAnswerSession, error) {
	if answers == nil {
		answers = []model.AnswerItem{}
	}
	s := &model.StudentAnswerSession{}
	err := scanSession(r.pool.QueryRow(ctx,
		`INSERT INTO student_answer_sessions AS s (exam_id, student_id, answers, score, grading_status, submitted_at)
		 VALUES ($1, $2, $3, $4, 'graded', $5)
		 ON CONFLICT (exam_id, student_id) DO UPDATE
		 SET answers = EXCLUDED.answers,
		     score = EXCLUDED.score,
		     grading_status = 'graded',
		     submitted_at = EXCLUDED.submitted_at,
		     updated_at = NOW()
		 WHERE s.grading_status = 'pending'
		 RETURNING `+sessionColumns,
		examID, studentID, answers, score, submittedAt), s)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByIDs retrieves sessions by id. Missing ids are silently skipped.
func (r *AnswerSessionRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.StudentAnswerSession, error) {
	return r.list(ctx, `SELECT `+sessionColumns+` FROM student_answer_sessions WHERE id = ANY($1::uuid[])`, ids)
}

// ListIDsByStatus returns the ids of an exam's sessions in the given status.
func (r *AnswerSessionRepository) ListIDsByStatus(ctx context.Context, examID uuid.UUID, status model.GradingStatus) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM student_answer_sessions WHERE exam_id = $1 AND grading_status = $2`,
		examID, status)
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

func (r *AnswerSessionRepository) list(ctx context.Context, query string, args ...any) ([]model.StudentAnswerSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.StudentAnswerSession
	for rows.Next() {
		var s model.StudentAnswerSession
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// BulkGrade writes many grading results in a single UNNEST statement and
// returns the ids actually written. Rows whose status or version moved on
// since they were read are left untouched.
func (r *AnswerSessionRepository) BulkGrade(ctx context.Context, updates []GradeUpdate) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(updates))
	answers := make([]string, len(updates))
	scores := make([]float64, len(updates))
	statuses := make([]string, len(updates))
	versions := make([]time.Time, len(updates))

	for i, u := range updates {
		if u.Answers == nil {
			u.Answers = []model.AnswerItem{}
		}
		raw, err := json.Marshal(u.Answers)
		if err != nil {
			return nil, fmt.Errorf("marshal answers: %w", err)
		}
		ids[i] = u.SessionID
		answers[i] = string(raw)
		scores[i] = u.Score
		statuses[i] = string(u.ExpectStatus)
		versions[i] = u.UpdatedAt
	}

	rows, err := r.pool.Query(ctx,
		`UPDATE student_answer_sessions AS s
		 SET answers = u.answers::jsonb,
		     score = u.score,
		     grading_status = 'graded',
		     submitted_at = COALESCE(s.submitted_at, NOW()),
		     updated_at = NOW()
		 FROM UNNEST($1::uuid[], $2::text[], $3::float8[], $4::text[], $5::timestamptz[])
		      AS u(id, answers, score, expect_status, version)
		 WHERE s.id = u.id
		   AND s.grading_status = u.expect_status
		   AND s.updated_at = u.version
		 RETURNING s.id`,
		ids, answers, scores, statuses, versions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var written []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		written = append(written, id)
	}
	return written, rows.Err()
}

// ListResultsByExam retrieves graded and pending results of an exam joined
// with student names. A non-positive limit returns every row.
func (r *AnswerSessionRepository) ListResultsByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResultRow, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM student_answer_sessions WHERE exam_id = $1`, examID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT s.id, u.id, u.name, u.username, s.score,
		       (SELECT COUNT(*) FROM jsonb_array_elements(s.answers) a WHERE (a->>'is_correct')::boolean),
		       jsonb_array_length(s.answers),
		       s.grading_status, s.submitted_at
		FROM student_answer_sessions s
		JOIN users u ON u.id = s.student_id
		WHERE s.exam_id = $1
		ORDER BY u.name ASC`
	args := []any{examID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.ExamResultRow
	for rows.Next() {
		var row model.ExamResultRow
		if err := rows.Scan(&row.SessionID, &row.StudentID, &row.StudentName, &row.Username, &row.Score,
			&row.CorrectCount, &row.AnswerCount, &row.GradingStatus, &row.SubmittedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, row)
	}
	return results, total, rows.Err()
}

// ListScoresByClass retrieves every session of the students in a class.
func (r *AnswerSessionRepository) ListScoresByClass(ctx context.Context, classID int) ([]model.ClassScoreRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.title, e.category, u.id, u.name, s.score, s.grading_status, s.submitted_at
		FROM student_answer_sessions s
		JOIN users u ON u.id = s.student_id
		JOIN exams e ON e.id = s.exam_id
		WHERE u.class_id = $1
		ORDER BY e.created_at DESC, u.name ASC`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ClassScoreRow
	for rows.Next() {
		var row model.ClassScoreRow
		if err := rows.Scan(&row.ExamID, &row.ExamTitle, &row.Category, &row.StudentID, &row.StudentName,
			&row.Score, &row.GradingStatus, &row.SubmittedAt); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
