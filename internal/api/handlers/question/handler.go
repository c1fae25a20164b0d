package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"questionbox/internal/api/respond"
	"questionbox/internal/config"
	"questionbox/internal/model"
	"questionbox/internal/repository/question"
)

// questionService defines the interface that the Handler depends on.
//
// It abstracts the business logic for creating and retrieving questions.
type questionService interface {
	CreateQuestion(context.Context, retry.Strategy, model.Question) (uuid.UUID, error)
	GetQuestionStatusByID(context.Context, retry.Strategy, uuid.UUID) (string, error)
	GetAllQuestions(context.Context) ([]model.Question, error)
}

// Handler handles HTTP requests related to questions.
type Handler struct {
	service   questionService
	validator *validator.Validate
	cfg       *config.Config
}

// NewHandler creates a new Handler instance.
func NewHandler(
	s questionService,
	v *validator.Validate,
	cfg *config.Config,
) *Handler {
	return &Handler{service: s, validator: v, cfg: cfg}
}

// CreateRequest represents the JSON body expected in a question creation request.
type CreateRequest struct {
	Category     string `json:"category" validate:"required"`
	QuestionText string `json:"question_text" validate:"required,min=10,max=2000"`
}

// Create handles HTTP POST requests to submit a new question.
//
// A validation failure is a rejection the caller must not blindly retry,
// so it is reported with a 4xx status.
func (h *Handler) Create(c *ginext.Context) {
	var req CreateRequest

	// Decode JSON request body into CreateRequest struct.
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	// Validate request fields using go-playground/validator.
	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	q := model.Question{
		Category:     req.Category,
		QuestionText: req.QuestionText,
		Status:       model.StatusPending,
	}

	id, err := h.service.CreateQuestion(c.Request.Context(), h.cfg.Retry, q)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("category", q.Category).Msg("failed to create question")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.Created(c.Writer, id)
}

// GetStatus handles HTTP GET requests to retrieve the status of a question.
func (h *Handler) GetStatus(c *ginext.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("idStr", idStr).Msg("failed to parse id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return
	}

	if id == uuid.Nil {
		zlog.Logger.Warn().Msg("missing id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("missing id"))
		return
	}

	status, err := h.service.GetQuestionStatusByID(c.Request.Context(), h.cfg.Retry, id)
	if err != nil {
		if errors.Is(err, question.ErrQuestionNotFound) {
			zlog.Logger.Warn().Err(err).Str("id", id.String()).Msg("question not found")
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("question not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get question status")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, status)
}

// GetAll handles HTTP GET requests to retrieve all questions.
func (h *Handler) GetAll(c *ginext.Context) {
	questions, err := h.service.GetAllQuestions(c.Request.Context())
	if err != nil {
		if errors.Is(err, question.ErrNoQuestionsFound) {
			zlog.Logger.Warn().Err(err).Msg("no questions found")
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("no questions found"))
			return
		}

		zlog.Logger.Error().Err(err).Msg("failed to get questions")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, questions)
}
