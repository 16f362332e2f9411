package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/acadex/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles exam definition data access. Definitions are owned
// by the authoring subsystem; this service only reads them.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam definition with its ordered questions.
func (r *ExamRepository) GetByID(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_minutes, status, created_at, updated_at
		 FROM exams
		 WHERE id = $1`, examID,
	).Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	questions, err := r.ListQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	e.Questions = questions
	return e, nil
}

// ListQuestions retrieves the questions of an exam in display order.
func (r *ExamRepository) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, order_num, question_type, prompt, points,
		        options, correct_option, language, starter_code, test_cases
		 FROM questions
		 WHERE exam_id = $1
		 ORDER BY order_num ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var options, testCases []byte
		var correctOption, language, starterCode *string
		if err := rows.Scan(
			&q.ID, &q.ExamID, &q.OrderNum, &q.Type, &q.Prompt, &q.Points,
			&options, &correctOption, &language, &starterCode, &testCases,
		); err != nil {
			return nil, err
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("decode options for question %s: %w", q.ID, err)
			}
		}
		if len(testCases) > 0 {
			if err := json.Unmarshal(testCases, &q.TestCases); err != nil {
				return nil, fmt.Errorf("decode test cases for question %s: %w", q.ID, err)
			}
		}
		if correctOption != nil {
			q.CorrectOption = *correctOption
		}
		if language != nil {
			q.Language = *language
		}
		if starterCode != nil {
			q.StarterCode = *starterCode
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListPublished returns the ids of all published exams, used to prewarm the
// payload cache at startup.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exams WHERE status = $1`, model.ExamStatusPublished)
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
