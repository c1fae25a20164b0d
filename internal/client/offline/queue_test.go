package offline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questionbox/internal/client/connectivity"
	"questionbox/internal/client/remote"
	"questionbox/internal/client/store"
)

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []string
	notified  []uuid.UUID
	failText  map[string]error
	delay     time.Duration
	notifyErr error
}

func (f *fakeSubmitter) SubmitQuestion(_ context.Context, _, questionText string) (uuid.UUID, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failText[questionText]; ok {
		return uuid.Nil, err
	}

	f.submitted = append(f.submitted, questionText)
	return uuid.New(), nil
}

func (f *fakeSubmitter) TriggerNewQuestionNotify(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, id)
	return f.notifyErr
}

func (f *fakeSubmitter) submittedTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submitted...)
}

func setupQueue(t *testing.T, sub *fakeSubmitter, online bool) (*Queue, *store.Store) {
	st, err := store.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)

	watcher := connectivity.NewWatcher(func(context.Context) bool { return online }, time.Hour)
	watcher.SetState(online)

	return NewQueue(st, sub, watcher), st
}

func TestQueue_Enqueue_Validation(t *testing.T) {
	q, _ := setupQueue(t, &fakeSubmitter{}, false)

	_, err := q.Enqueue("general", "short")
	assert.ErrorIs(t, err, ErrInvalidQuestion)

	_, err = q.Enqueue("general", strings.Repeat("x", 2001))
	assert.ErrorIs(t, err, ErrInvalidQuestion)

	rec, err := q.Enqueue("general", "a perfectly valid question text")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.ID, "offline-"))
}

func TestQueue_Enqueue_SurvivesOffline(t *testing.T) {
	q, st := setupQueue(t, &fakeSubmitter{}, false)

	_, err := q.Enqueue("general", "a question entered while offline")
	require.NoError(t, err)

	// The record must be durable independent of the queue instance.
	list, err := st.ListPending()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a question entered while offline", list[0].QuestionText)
}

func TestQueue_Synchronize_OfflineIsNoop(t *testing.T) {
	sub := &fakeSubmitter{}
	q, _ := setupQueue(t, sub, false)

	_, err := q.Enqueue("general", "a question entered while offline")
	require.NoError(t, err)

	rep, err := q.Synchronize(context.Background())
	require.NoError(t, err)

	assert.Zero(t, rep.Succeeded)
	assert.Empty(t, sub.submittedTexts())

	n, err := q.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "nothing is lost by an offline pass")
}

func TestQueue_Synchronize_DrainsInOrder(t *testing.T) {
	sub := &fakeSubmitter{}
	q, _ := setupQueue(t, sub, true)

	texts := []string{
		"the first question entered offline",
		"the second question entered offline",
		"the third question entered offline",
	}
	for _, text := range texts {
		_, err := q.Enqueue("general", text)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond) // distinct enqueue timestamps
	}

	rep, err := q.Synchronize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Succeeded)
	assert.Zero(t, rep.Remaining)
	assert.Equal(t, texts, sub.submittedTexts(), "oldest first")

	n, err := q.PendingCount()
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Len(t, sub.notified, 3, "one notify trigger per synced question")
}

func TestQueue_Synchronize_PartialFailure(t *testing.T) {
	bad := "this question makes the server choke"
	sub := &fakeSubmitter{failText: map[string]error{
		bad: fmt.Errorf("%w: connection reset", remote.ErrTransport),
	}}
	q, _ := setupQueue(t, sub, true)

	_, err := q.Enqueue("general", "the first question entered offline")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = q.Enqueue("general", bad)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = q.Enqueue("general", "the third question entered offline")
	require.NoError(t, err)

	rep, err := q.Synchronize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Succeeded, "one failing item must not block the others")
	assert.Equal(t, 1, rep.Remaining)

	list, err := q.ListPending()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bad, list[0].QuestionText, "the failed item stays queued")
}

func TestQueue_Synchronize_RejectedCountedSeparately(t *testing.T) {
	bad := "this question is refused outright"
	sub := &fakeSubmitter{failText: map[string]error{
		bad: fmt.Errorf("%w: validation error", remote.ErrRejected),
	}}
	q, _ := setupQueue(t, sub, true)

	_, err := q.Enqueue("general", bad)
	require.NoError(t, err)

	rep, err := q.Synchronize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Rejected)
	assert.Equal(t, 1, rep.Remaining)
	assert.Zero(t, rep.Succeeded)
}

func TestQueue_Synchronize_NoDuplicateSubmission(t *testing.T) {
	sub := &fakeSubmitter{delay: 5 * time.Millisecond}
	q, _ := setupQueue(t, sub, true)

	for i := 0; i < 5; i++ {
		_, err := q.Enqueue("general", fmt.Sprintf("concurrently synced question number %d", i))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		go func() {
			defer wg.Done()
			_, _ = q.Synchronize(context.Background())
		}()
	}
	wg.Wait()

	assert.Len(t, sub.submittedTexts(), 5, "each question is submitted exactly once")

	n, err := q.PendingCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueue_Synchronize_NotifyFailureIsBestEffort(t *testing.T) {
	sub := &fakeSubmitter{notifyErr: fmt.Errorf("%w: gateway down", remote.ErrTransport)}
	q, _ := setupQueue(t, sub, true)

	_, err := q.Enqueue("general", "a question whose notify trigger fails")
	require.NoError(t, err)

	rep, err := q.Synchronize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Succeeded, "a failed trigger does not fail the sync")

	n, err := q.PendingCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueue_Run_SyncsOnReconnect(t *testing.T) {
	sub := &fakeSubmitter{}

	st, err := store.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)

	watcher := connectivity.NewWatcher(func(context.Context) bool { return false }, time.Hour)
	q := NewQueue(st, sub, watcher)

	_, err = q.Enqueue("general", "a question waiting for connectivity")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go q.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sub.submittedTexts())

	watcher.SetState(true)

	assert.Eventually(t, func() bool {
		return len(sub.submittedTexts()) == 1
	}, time.Second, 10*time.Millisecond)
}
