package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"questionbox/internal/model"
	"questionbox/internal/rabbitmq/queue"
	"questionbox/internal/repository/question"
	"questionbox/internal/service/push"
)

type pushService interface {
	NotifyAdminsOfNewQuestion(ctx context.Context, questionID uuid.UUID) (model.DispatchResult, error)
}

// Handler consumes new-question triggers and dispatches admin notifications.
type Handler struct {
	service pushService
}

func NewHandler(svc pushService) *Handler {
	return &Handler{
		service: svc,
	}
}

// HandleMessage dispatches the notification for one trigger.
//
// A missing or stale question is dropped without retry; the event is
// already settled and re-notifying would be wrong. Transient failures are
// retried per the strategy and then dropped — dispatch is fire-and-forget.
func (h *Handler) HandleMessage(ctx context.Context, msg queue.NotifyMessage, strategy retry.Strategy) {
	zlog.Logger.Info().Str("question_id", msg.QuestionID.String()).Msg("handling new question trigger")

	err := retry.Do(func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := h.service.NotifyAdminsOfNewQuestion(ctx, msg.QuestionID)
		if err != nil {
			if errors.Is(err, push.ErrQuestionTooOld) || errors.Is(err, question.ErrQuestionNotFound) {
				zlog.Logger.Warn().Err(err).Str("question_id", msg.QuestionID.String()).Msg("dropping new question trigger")
				return nil
			}

			return err
		}

		zlog.Logger.Info().
			Str("question_id", msg.QuestionID.String()).
			Int("recipients", result.RecipientCount).
			Int("success", result.SuccessCount).
			Int("failure", result.FailureCount).
			Msg("new question notification dispatched")

		return nil
	}, strategy)

	if err != nil {
		zlog.Logger.Error().Err(err).Str("question_id", msg.QuestionID.String()).Msg("failed to dispatch new question notification")
	}
}
