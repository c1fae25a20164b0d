package push

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"questionbox/internal/model"
	"questionbox/pkg/fcm"
)

type fakeTokenRepo struct {
	upserted    []model.PushToken
	adminTokens []model.PushToken
	allTokens   []model.PushToken
	setAdminErr error
	adminErr    error
}

func (f *fakeTokenRepo) UpsertToken(_ context.Context, t model.PushToken) error {
	f.upserted = append(f.upserted, t)
	return nil
}

func (f *fakeTokenRepo) GetAdminTokens(context.Context) ([]model.PushToken, error) {
	return f.adminTokens, f.adminErr
}

func (f *fakeTokenRepo) GetAllTokens(context.Context) ([]model.PushToken, error) {
	return f.allTokens, nil
}

func (f *fakeTokenRepo) SetAdmin(context.Context, string) error {
	return f.setAdminErr
}

type fakeAdminRepo struct {
	hash string
	err  error
}

func (f *fakeAdminRepo) GetPasswordHash(context.Context) (string, error) {
	return f.hash, f.err
}

type fakeQuestionRepo struct {
	question model.Question
	err      error
}

func (f *fakeQuestionRepo) GetQuestionByID(context.Context, uuid.UUID) (model.Question, error) {
	return f.question, f.err
}

type fakeGateway struct {
	enabled bool
	failFor map[string]bool

	mu   sync.Mutex
	sent []fcm.Notification
	to   []string
}

func (f *fakeGateway) Enabled() bool { return f.enabled }

func (f *fakeGateway) Send(_ context.Context, token string, n fcm.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failFor[token] {
		return errors.New("gateway refused token")
	}

	f.sent = append(f.sent, n)
	f.to = append(f.to, token)
	return nil
}

func mustHash(t *testing.T, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestService_VerifyAdmin(t *testing.T) {
	admin := &fakeAdminRepo{hash: mustHash(t, "secret")}
	svc := NewService(nil, admin, nil, nil)

	assert.NoError(t, svc.VerifyAdmin(context.Background(), "secret"))
	assert.ErrorIs(t, svc.VerifyAdmin(context.Background(), "wrong"), ErrUnauthorized)
	assert.ErrorIs(t, svc.VerifyAdmin(context.Background(), ""), ErrUnauthorized)
}

func TestService_VerifyAdmin_NoPasswordSet(t *testing.T) {
	admin := &fakeAdminRepo{err: errors.New("admin password not set")}
	svc := NewService(nil, admin, nil, nil)

	assert.ErrorIs(t, svc.VerifyAdmin(context.Background(), "anything"), ErrUnauthorized)
}

func TestService_RegisterToken_DefaultsDeviceType(t *testing.T) {
	tokens := &fakeTokenRepo{}
	svc := NewService(tokens, nil, nil, nil)

	err := svc.RegisterToken(context.Background(), "device-token", "")
	require.NoError(t, err)

	require.Len(t, tokens.upserted, 1)
	assert.Equal(t, "unknown", tokens.upserted[0].DeviceType)
	assert.Equal(t, "device-token", tokens.upserted[0].Token)
}

func TestService_PromoteToAdmin_InvalidPassword(t *testing.T) {
	tokens := &fakeTokenRepo{}
	admin := &fakeAdminRepo{hash: mustHash(t, "secret")}
	svc := NewService(tokens, admin, nil, nil)

	err := svc.PromoteToAdmin(context.Background(), "device-token", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, tokens.upserted)
}

func TestService_DispatchToAdmins_GatewayDisabled(t *testing.T) {
	tokens := &fakeTokenRepo{adminTokens: []model.PushToken{{Token: "a"}, {Token: "b"}}}
	gw := &fakeGateway{enabled: false}
	svc := NewService(tokens, nil, nil, gw)

	result, err := svc.DispatchToAdmins(context.Background(), fcm.Notification{Title: "hi"})
	require.NoError(t, err)

	assert.True(t, result.Queued)
	assert.Equal(t, 2, result.RecipientCount)
	assert.Empty(t, gw.sent, "no gateway call must be made while disabled")
}

func TestService_DispatchToAdmins_PartialFailure(t *testing.T) {
	tokens := &fakeTokenRepo{adminTokens: []model.PushToken{
		{Token: "good-1"}, {Token: "bad"}, {Token: "good-2"},
	}}
	gw := &fakeGateway{enabled: true, failFor: map[string]bool{"bad": true}}
	svc := NewService(tokens, nil, nil, gw)

	result, err := svc.DispatchToAdmins(context.Background(), fcm.Notification{Title: "hi"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.RecipientCount)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.False(t, result.Queued)
	assert.ElementsMatch(t, []string{"good-1", "good-2"}, gw.to)
}

func TestService_NotifyAdminsOfNewQuestion(t *testing.T) {
	q := model.Question{
		ID:           uuid.New(),
		Category:     "general",
		QuestionText: "Is it permissible to combine prayers while travelling?",
		Status:       model.StatusPending,
		CreatedAt:    time.Now(),
	}
	questions := &fakeQuestionRepo{question: q}
	tokens := &fakeTokenRepo{adminTokens: []model.PushToken{{Token: "admin-1"}}}
	gw := &fakeGateway{enabled: true}
	svc := NewService(tokens, nil, questions, gw)

	result, err := svc.NotifyAdminsOfNewQuestion(context.Background(), q.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, gw.sent, 1)
	assert.Equal(t, "سؤال جديد", gw.sent[0].Title)
	assert.Contains(t, gw.sent[0].Body, "فئة: general")
	assert.Contains(t, gw.sent[0].Body, q.QuestionText)
	assert.Equal(t, q.ID.String(), gw.sent[0].Data["question_id"])
}

func TestService_NotifyAdminsOfNewQuestion_TooOld(t *testing.T) {
	q := model.Question{
		ID:        uuid.New(),
		CreatedAt: time.Now().Add(-11 * time.Minute),
	}
	questions := &fakeQuestionRepo{question: q}
	gw := &fakeGateway{enabled: true}
	svc := NewService(&fakeTokenRepo{}, nil, questions, gw)

	_, err := svc.NotifyAdminsOfNewQuestion(context.Background(), q.ID)
	assert.ErrorIs(t, err, ErrQuestionTooOld)
	assert.Empty(t, gw.sent, "a stale question must not reach the gateway")
}

func TestService_NotifyAdminsOfNewQuestion_SnippetTruncated(t *testing.T) {
	longText := strings.Repeat("س", 300)
	q := model.Question{
		ID:           uuid.New(),
		Category:     "general",
		QuestionText: longText,
		CreatedAt:    time.Now(),
	}
	questions := &fakeQuestionRepo{question: q}
	tokens := &fakeTokenRepo{adminTokens: []model.PushToken{{Token: "admin-1"}}}
	gw := &fakeGateway{enabled: true}
	svc := NewService(tokens, nil, questions, gw)

	_, err := svc.NotifyAdminsOfNewQuestion(context.Background(), q.ID)
	require.NoError(t, err)

	require.Len(t, gw.sent, 1)
	assert.Contains(t, gw.sent[0].Body, strings.Repeat("س", 80)+"...")
	assert.NotContains(t, gw.sent[0].Body, strings.Repeat("س", 81))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("short"))

	long := strings.Repeat("a", 100)
	got := snippet(long)
	assert.Equal(t, strings.Repeat("a", 80)+"...", got)
}
