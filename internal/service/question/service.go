package question

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"questionbox/internal/model"
)

type questionRepository interface {
	CreateQuestion(context.Context, model.Question) (uuid.UUID, error)
	GetQuestionStatusByID(context.Context, uuid.UUID) (string, error)
	GetAllQuestions(context.Context) ([]model.Question, error)
}

type cache interface {
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
}

// Service implements the question submission business logic.
type Service struct {
	repo  questionRepository
	cache cache
}

// NewService creates a new question service.
func NewService(repo questionRepository, cache cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// CreateQuestion stores a new question and caches its status.
//
// A cache failure is logged and swallowed; the insert is the source of truth.
func (s *Service) CreateQuestion(ctx context.Context, strategy retry.Strategy, question model.Question) (uuid.UUID, error) {
	id, err := s.repo.CreateQuestion(ctx, question)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create question: %w", err)
	}

	err = s.cache.SetWithRetry(ctx, strategy, id.String(), question.Status)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache question status")
	}

	return id, nil
}

// GetQuestionStatusByID returns the question status, cache-first.
func (s *Service) GetQuestionStatusByID(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (string, error) {
	status, err := s.cache.GetWithRetry(ctx, strategy, id.String())
	if err != nil && !errors.Is(err, redis.Nil) {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get question status from cache")
	}

	if errors.Is(err, redis.Nil) {
		status, err = s.repo.GetQuestionStatusByID(ctx, id)
		if err != nil {
			return "", fmt.Errorf("get question status: %w", err)
		}

		err = s.cache.SetWithRetry(ctx, strategy, id.String(), status)
		if err != nil {
			zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache question status")
		}
	}

	return status, nil
}

// GetAllQuestions returns every stored question, newest first.
func (s *Service) GetAllQuestions(ctx context.Context) ([]model.Question, error) {
	questions, err := s.repo.GetAllQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("get all questions: %w", err)
	}

	return questions, nil
}
