package question

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"questionbox/internal/model"
)

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrNoQuestionsFound = errors.New("no questions found")
)

// Repository provides methods to interact with the questions table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new question repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// CreateQuestion inserts a new question into the database and returns its ID.
func (r *Repository) CreateQuestion(ctx context.Context, question model.Question) (uuid.UUID, error) {
	query := `
		INSERT INTO questions (
		    category, question_text, status
		) VALUES ($1, $2, $3)
		RETURNING id;
    `

	err := r.db.QueryRowContext(
		ctx, query, question.Category, question.QuestionText, question.Status,
	).Scan(&question.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create question: %w", err)
	}

	return question.ID, nil
}

// GetQuestionByID retrieves a single question by its ID.
func (r *Repository) GetQuestionByID(ctx context.Context, id uuid.UUID) (model.Question, error) {
	query := `
		SELECT id, category, question_text, status, created_at, updated_at
		FROM questions
		WHERE id = $1;
    `

	var q model.Question
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&q.ID, &q.Category, &q.QuestionText, &q.Status, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Question{}, ErrQuestionNotFound
		}

		return model.Question{}, fmt.Errorf("failed to get question: %w", err)
	}

	return q, nil
}

// GetQuestionStatusByID retrieves the status of a question by its ID.
func (r *Repository) GetQuestionStatusByID(ctx context.Context, id uuid.UUID) (string, error) {
	query := `
		SELECT status
		FROM questions
		WHERE id = $1;
    `

	var status string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrQuestionNotFound
		}

		return "", fmt.Errorf("failed to get question status: %w", err)
	}

	return status, nil
}

// GetAllQuestions retrieves all questions ordered by creation time descending.
func (r *Repository) GetAllQuestions(ctx context.Context) ([]model.Question, error) {
	query := `
		SELECT id, category, question_text, status, created_at, updated_at
		FROM questions
		ORDER BY created_at DESC;
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all questions: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Category, &q.QuestionText, &q.Status, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}

		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, ErrNoQuestionsFound
	}

	return questions, nil
}
