package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"questionbox/internal/api/respond"
	"questionbox/internal/config"
	"questionbox/internal/model"
	"questionbox/internal/rabbitmq/queue"
	pushrepo "questionbox/internal/repository/pushtoken"
	pushsvc "questionbox/internal/service/push"
	"questionbox/pkg/fcm"
)

// pushService defines the interface that the Handler depends on.
type pushService interface {
	VerifyAdmin(ctx context.Context, password string) error
	RegisterToken(ctx context.Context, token, deviceType string) error
	PromoteToAdmin(ctx context.Context, token, password string) error
	ListTokens(ctx context.Context, password string) ([]model.PushToken, error)
	DispatchToAdmins(ctx context.Context, payload fcm.Notification) (model.DispatchResult, error)
}

// notifyPublisher enqueues best-effort new-question triggers.
type notifyPublisher interface {
	Publish(msg queue.NotifyMessage, strategy retry.Strategy) error
}

// Handler handles HTTP requests related to push tokens and notifications.
type Handler struct {
	service   pushService
	publisher notifyPublisher
	validator *validator.Validate
	cfg       *config.Config
}

// NewHandler creates a new Handler instance.
func NewHandler(
	s pushService,
	p notifyPublisher,
	v *validator.Validate,
	cfg *config.Config,
) *Handler {
	return &Handler{service: s, publisher: p, validator: v, cfg: cfg}
}

// RegisterRequest represents the JSON body for token registration.
type RegisterRequest struct {
	Token      string `json:"token" validate:"required"`
	DeviceType string `json:"device_type"`
}

// Register handles HTTP POST requests to register a device push token.
//
// The upsert is idempotent on the token value, so registering an already
// known token succeeds.
func (h *Handler) Register(c *ginext.Context) {
	var req RegisterRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("token is required"))
		return
	}

	if err := h.service.RegisterToken(c.Request.Context(), req.Token, req.DeviceType); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to register token")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("failed to register token"))
		return
	}

	respond.OK(c.Writer, "token registered")
}

// SendRequest represents the JSON body for an admin broadcast.
type SendRequest struct {
	AdminPassword string `json:"admin_password" validate:"required"`
	Notification  struct {
		Title string            `json:"title" validate:"required"`
		Body  string            `json:"body" validate:"required"`
		Data  map[string]string `json:"data"`
	} `json:"notification"`
}

// Send handles HTTP POST requests to broadcast a notification to all
// admin-flagged devices. The credential is verified before any work.
func (h *Handler) Send(c *ginext.Context) {
	var req SendRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	if err := h.service.VerifyAdmin(c.Request.Context(), req.AdminPassword); err != nil {
		respond.Fail(c.Writer, http.StatusForbidden, fmt.Errorf("invalid admin password"))
		return
	}

	result, err := h.service.DispatchToAdmins(c.Request.Context(), fcm.Notification{
		Title: req.Notification.Title,
		Body:  req.Notification.Body,
		Data:  req.Notification.Data,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to dispatch notification")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, result)
}

// PromoteRequest represents the JSON body for promoting a token to admin.
type PromoteRequest struct {
	Token         string `json:"token" validate:"required"`
	AdminPassword string `json:"admin_password" validate:"required"`
}

// Promote handles HTTP POST requests to flag a token as an admin recipient.
func (h *Handler) Promote(c *ginext.Context) {
	var req PromoteRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	err := h.service.PromoteToAdmin(c.Request.Context(), req.Token, req.AdminPassword)
	if err != nil {
		if errors.Is(err, pushsvc.ErrUnauthorized) {
			respond.Fail(c.Writer, http.StatusForbidden, fmt.Errorf("invalid admin password"))
			return
		}

		if errors.Is(err, pushrepo.ErrTokenNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("token not found"))
			return
		}

		zlog.Logger.Error().Err(err).Msg("failed to promote token")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, "admin status set")
}

// ListTokensRequest represents the JSON body for listing registered tokens.
type ListTokensRequest struct {
	AdminPassword string `json:"admin_password" validate:"required"`
}

// ListTokens handles HTTP POST requests to list every registered token.
func (h *Handler) ListTokens(c *ginext.Context) {
	var req ListTokensRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("admin password is required"))
		return
	}

	tokens, err := h.service.ListTokens(c.Request.Context(), req.AdminPassword)
	if err != nil {
		if errors.Is(err, pushsvc.ErrUnauthorized) {
			respond.Fail(c.Writer, http.StatusForbidden, fmt.Errorf("invalid admin password"))
			return
		}

		zlog.Logger.Error().Err(err).Msg("failed to list tokens")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, tokens)
}

// NotifyQuestionRequest represents the JSON body for a new-question trigger.
type NotifyQuestionRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
}

// NotifyQuestion handles HTTP POST requests that trigger a new-question
// notification. The trigger is published to the dispatch queue and handled
// asynchronously; a stale question is dropped by the worker.
func (h *Handler) NotifyQuestion(c *ginext.Context) {
	var req NotifyQuestionRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("question_id is required"))
		return
	}

	id, err := uuid.Parse(req.QuestionID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("question_id", req.QuestionID).Msg("failed to parse question id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid question_id"))
		return
	}

	msg := queue.NotifyMessage{QuestionID: id, EnqueuedAt: time.Now()}

	if err := h.publisher.Publish(msg, h.cfg.Retry); err != nil {
		zlog.Logger.Error().Err(err).Str("question_id", id.String()).Msg("failed to publish notify message")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.Accepted(c.Writer, "notification queued")
}
