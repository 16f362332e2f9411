package repository

import (
	"context"
	"fmt"

	"github.com/acadex/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubmissionRepository reads submitted attempts with their responses and
// applies grade batches.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// GetBySession retrieves one submission with its ordered responses.
func (r *SubmissionRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.Submission, error) {
	s := &model.Submission{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, finished_at, elapsed_seconds,
		        submit_trigger, violation_count
		 FROM exam_sessions
		 WHERE id = $1 AND status = $2`, sessionID, model.SessionStatusSubmitted,
	).Scan(&s.SessionID, &s.ExamID, &s.StudentID, &s.SubmittedAt,
		&s.ElapsedSeconds, &s.SubmitTrigger, &s.ViolationCount)
	if err != nil {
		return nil, err
	}

	responses, err := r.listResponses(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	s.Responses = responses
	return s, nil
}

// ListByExam retrieves all submissions for an exam, responses included, so
// the caller can derive grading status from current state.
func (r *SubmissionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_id, finished_at, elapsed_seconds,
		        submit_trigger, violation_count
		 FROM exam_sessions
		 WHERE exam_id = $1 AND status = $2
		 ORDER BY finished_at ASC`, examID, model.SessionStatusSubmitted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.SessionID, &s.ExamID, &s.StudentID, &s.SubmittedAt,
			&s.ElapsedSeconds, &s.SubmitTrigger, &s.ViolationCount); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range subs {
		responses, err := r.listResponses(ctx, subs[i].SessionID)
		if err != nil {
			return nil, fmt.Errorf("list responses for %s: %w", subs[i].SessionID, err)
		}
		subs[i].Responses = responses
	}
	return subs, nil
}

func (r *SubmissionRepository) listResponses(ctx context.Context, sessionID uuid.UUID) ([]model.Response, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.session_id, r.question_id, r.question_type, q.prompt,
		        r.max_marks, r.student_answer, r.flagged, r.marks_obtained,
		        r.is_graded, r.teacher_feedback, r.updated_at
		 FROM responses r
		 JOIN questions q ON q.id = r.question_id
		 WHERE r.session_id = $1
		 ORDER BY q.order_num ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []model.Response
	for rows.Next() {
		var resp model.Response
		if err := rows.Scan(&resp.ID, &resp.SessionID, &resp.QuestionID, &resp.QuestionType,
			&resp.Prompt, &resp.MaxMarks, &resp.StudentAnswer, &resp.Flagged,
			&resp.MarksObtained, &resp.IsGraded, &resp.TeacherFeedback, &resp.UpdatedAt); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

// UpdateGrades applies a batch of grade updates inside one transaction:
// either every update lands or none does, so a failed save can be retried
// without double-crediting. Multiple choice responses are excluded at the
// SQL level — their marks are system-computed and never grader-writable.
func (r *SubmissionRepository) UpdateGrades(ctx context.Context, sessionID uuid.UUID, updates []model.GradeUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, u := range updates {
		tag, err := tx.Exec(ctx,
			`UPDATE responses
			 SET marks_obtained = $1,
			     teacher_feedback = $2,
			     is_graded = TRUE,
			     updated_at = NOW()
			 WHERE id = $3
			   AND session_id = $4
			   AND question_type <> $5
			   AND $1 BETWEEN 0 AND max_marks`,
			u.MarksObtained, u.TeacherFeedback, u.ResponseID, sessionID,
			model.QuestionTypeMultipleChoice,
		)
		if err != nil {
			return fmt.Errorf("update response %s: %w", u.ResponseID, err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("update response %s: no matching gradable row", u.ResponseID)
		}
	}

	return tx.Commit(ctx)
}
