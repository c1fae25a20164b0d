package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/crypto/bcrypt"

	"questionbox/internal/model"
	"questionbox/pkg/fcm"
)

// maxQuestionAge bounds how old a question may be before its "new question"
// notification is dropped. A delayed or redelivered trigger must not
// re-notify about a long-settled event.
const maxQuestionAge = 10 * time.Minute

// snippetLimit is the number of runes of question text included in the
// notification body.
const snippetLimit = 80

var (
	ErrUnauthorized   = errors.New("invalid admin credential")
	ErrQuestionTooOld = errors.New("question is too old for notification")
)

type tokenRepository interface {
	UpsertToken(context.Context, model.PushToken) error
	GetAdminTokens(context.Context) ([]model.PushToken, error)
	GetAllTokens(context.Context) ([]model.PushToken, error)
	SetAdmin(ctx context.Context, token string) error
}

type adminRepository interface {
	GetPasswordHash(context.Context) (string, error)
}

type questionRepository interface {
	GetQuestionByID(context.Context, uuid.UUID) (model.Question, error)
}

type gateway interface {
	Enabled() bool
	Send(ctx context.Context, token string, n fcm.Notification) error
}

// Service implements push token registration and notification dispatch.
type Service struct {
	tokens    tokenRepository
	admin     adminRepository
	questions questionRepository
	gateway   gateway
}

// NewService creates a new push service.
func NewService(tokens tokenRepository, admin adminRepository, questions questionRepository, gateway gateway) *Service {
	return &Service{tokens: tokens, admin: admin, questions: questions, gateway: gateway}
}

// VerifyAdmin checks the given password against the stored hash.
//
// Any failure, including a missing password or hash, is reported as
// ErrUnauthorized without detail about which part was wrong.
func (s *Service) VerifyAdmin(ctx context.Context, password string) error {
	if password == "" {
		return ErrUnauthorized
	}

	hash, err := s.admin.GetPasswordHash(ctx)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to load admin password hash")
		return ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrUnauthorized
	}

	return nil
}

// RegisterToken upserts a device token. Registering an already known token
// is the expected steady-state case, not an error.
func (s *Service) RegisterToken(ctx context.Context, token, deviceType string) error {
	if deviceType == "" {
		deviceType = "unknown"
	}

	err := s.tokens.UpsertToken(ctx, model.PushToken{Token: token, DeviceType: deviceType})
	if err != nil {
		return fmt.Errorf("register token: %w", err)
	}

	return nil
}

// PromoteToAdmin flags a token as an admin recipient. The credential is
// verified first; no partial work is performed on failure.
func (s *Service) PromoteToAdmin(ctx context.Context, token, password string) error {
	if err := s.VerifyAdmin(ctx, password); err != nil {
		return err
	}

	if err := s.tokens.SetAdmin(ctx, token); err != nil {
		return fmt.Errorf("promote token: %w", err)
	}

	return nil
}

// ListTokens returns every registered token. Requires a valid admin credential.
func (s *Service) ListTokens(ctx context.Context, password string) ([]model.PushToken, error) {
	if err := s.VerifyAdmin(ctx, password); err != nil {
		return nil, err
	}

	tokens, err := s.tokens.GetAllTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}

	return tokens, nil
}

// DispatchToAdmins delivers the payload to every admin-flagged token.
//
// Gateway calls are issued concurrently; an individual rejection is logged
// and counted but never aborts the batch, and no per-token retry is made.
// When the gateway is disabled the result reports Queued=true and no call
// is attempted.
func (s *Service) DispatchToAdmins(ctx context.Context, payload fcm.Notification) (model.DispatchResult, error) {
	tokens, err := s.tokens.GetAdminTokens(ctx)
	if err != nil {
		return model.DispatchResult{}, fmt.Errorf("load admin tokens: %w", err)
	}

	result := model.DispatchResult{RecipientCount: len(tokens)}

	if !s.gateway.Enabled() {
		zlog.Logger.Warn().Int("recipients", len(tokens)).
			Msg("push gateway disabled, notification queued hypothetically")
		result.Queued = true
		return result, nil
	}

	if len(tokens) == 0 {
		return result, nil
	}

	var (
		wg      sync.WaitGroup
		success atomic.Int64
	)

	wg.Add(len(tokens))
	for _, t := range tokens {
		go func(token string) {
			defer wg.Done()

			if err := s.gateway.Send(ctx, token, payload); err != nil {
				zlog.Logger.Error().Err(err).Str("token", truncateToken(token)).Msg("failed to send push notification")
				return
			}

			success.Add(1)
		}(t.Token)
	}
	wg.Wait()

	result.SuccessCount = int(success.Load())
	result.FailureCount = len(tokens) - result.SuccessCount

	return result, nil
}

// NotifyAdminsOfNewQuestion dispatches a "new question" notification for the
// given question id.
//
// A missing question or one created more than maxQuestionAge ago fails
// without touching the gateway.
func (s *Service) NotifyAdminsOfNewQuestion(ctx context.Context, questionID uuid.UUID) (model.DispatchResult, error) {
	q, err := s.questions.GetQuestionByID(ctx, questionID)
	if err != nil {
		return model.DispatchResult{}, fmt.Errorf("load question: %w", err)
	}

	if time.Since(q.CreatedAt) > maxQuestionAge {
		return model.DispatchResult{}, ErrQuestionTooOld
	}

	payload := fcm.Notification{
		Title: "سؤال جديد",
		Body:  fmt.Sprintf("فئة: %s\n%s", q.Category, snippet(q.QuestionText)),
		Data:  map[string]string{"question_id": q.ID.String()},
	}

	return s.DispatchToAdmins(ctx, payload)
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLimit {
		return text
	}

	return string(runes[:snippetLimit]) + "..."
}

func truncateToken(token string) string {
	if len(token) <= 10 {
		return token
	}

	return token[:10] + "..."
}
