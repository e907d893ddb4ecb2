package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

const questionColumns = `id, exam_id, question_text, options, answer_key, points, shuffle_options, order_num`

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func scanQuestion(row pgx.Row, q *model.Question) error {
	return row.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.Options, &q.AnswerKey,
		&q.Points, &q.ShuffleOptions, &q.OrderNum)
}

// ListByExam retrieves all questions of an exam in persisted order.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE exam_id = $1
		 ORDER BY order_num ASC, created_at ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetByID retrieves a single question.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	if err := scanQuestion(r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id), q); err != nil {
		return nil, err
	}
	return q, nil
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (exam_id, question_text, options, answer_key, points, shuffle_options, order_num)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		q.ExamID, q.QuestionText, q.Options, q.AnswerKey, q.Points, q.ShuffleOptions, q.OrderNum,
	).Scan(&q.ID)
}

// Update writes every editable column of q.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE questions
		 SET question_text = $1, options = $2, answer_key = $3, points = $4,
		     shuffle_options = $5, order_num = $6, updated_at = NOW()
		 WHERE id = $7`,
		q.QuestionText, q.Options, q.AnswerKey, q.Points, q.ShuffleOptions, q.OrderNum, q.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a question.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AnswerKeys returns the grading data of every question of an exam.
func (r *QuestionRepository) AnswerKeys(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]model.AnswerKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, answer_key, points FROM questions WHERE exam_id = $1`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[uuid.UUID]model.AnswerKey)
	for rows.Next() {
		var id uuid.UUID
		var k model.AnswerKey
		if err := rows.Scan(&id, &k.Key, &k.Points); err != nil {
			return nil, err
		}
		keys[id] = k
	}
	return keys, rows.Err()
}
