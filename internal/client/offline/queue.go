// Package offline implements the durable question queue for the device
// agent: questions entered without connectivity are persisted locally and
// drained into the server once the network returns.
package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"questionbox/internal/client/connectivity"
	"questionbox/internal/client/remote"
	"questionbox/internal/client/store"
)

const (
	minQuestionLen = 10
	maxQuestionLen = 2000
)

// localIDPrefix distinguishes locally generated ids from server-assigned
// ones; the two must never be confused.
const localIDPrefix = "offline-"

var ErrInvalidQuestion = errors.New("question text must be between 10 and 2000 characters")

type pendingStore interface {
	AddPending(store.PendingQuestion) error
	ListPending() ([]store.PendingQuestion, error)
	UpdatePending(id string, fields map[string]interface{}) error
	DeletePending(id string) error
	ClearPending() error
	CountPending() (int64, error)
}

type submitter interface {
	SubmitQuestion(ctx context.Context, category, questionText string) (uuid.UUID, error)
	TriggerNewQuestionNotify(ctx context.Context, questionID uuid.UUID) error
}

type connectivitySource interface {
	Online() bool
	Subscribe() *connectivity.Subscription
}

// Report aggregates the outcome of one synchronization pass.
type Report struct {
	Succeeded int // submitted and removed from the local queue
	Rejected  int // refused by the server, left pending for inspection
	Remaining int // still pending after the pass
}

// Queue manages the durable pending-question queue and its synchronization.
//
// Synchronize is safe to invoke from multiple triggers concurrently; a
// non-reentrant lock guarantees at most one pass in flight, which is the
// sole mechanism preventing duplicate submission.
type Queue struct {
	store  pendingStore
	remote submitter
	net    connectivitySource

	syncMu sync.Mutex
}

// NewQueue creates a new offline queue manager.
func NewQueue(st pendingStore, remote submitter, net connectivitySource) *Queue {
	return &Queue{store: st, remote: remote, net: net}
}

// Enqueue validates and durably persists a question for later submission.
func (q *Queue) Enqueue(category, questionText string) (store.PendingQuestion, error) {
	if n := len([]rune(questionText)); n < minQuestionLen || n > maxQuestionLen {
		return store.PendingQuestion{}, ErrInvalidQuestion
	}

	rec := store.PendingQuestion{
		ID:           localIDPrefix + uuid.NewString(),
		Category:     category,
		QuestionText: questionText,
		EnqueuedAtMs: time.Now().UnixMilli(),
	}

	if err := q.store.AddPending(rec); err != nil {
		return store.PendingQuestion{}, fmt.Errorf("persist pending question: %w", err)
	}

	return rec, nil
}

// ListPending returns the queued questions, oldest first.
func (q *Queue) ListPending() ([]store.PendingQuestion, error) {
	return q.store.ListPending()
}

// Update applies a partial edit to a still-pending question.
func (q *Queue) Update(id string, fields map[string]interface{}) error {
	return q.store.UpdatePending(id, fields)
}

// Remove deletes a single pending question. Removing an unknown id is a
// benign no-op.
func (q *Queue) Remove(id string) error {
	return q.store.DeletePending(id)
}

// ClearAll empties the queue. Only ever invoked by an explicit user action.
func (q *Queue) ClearAll() error {
	return q.store.ClearPending()
}

// PendingCount returns the number of queued questions.
func (q *Queue) PendingCount() (int64, error) {
	return q.store.CountPending()
}

// Synchronize drains the pending queue into the server.
//
// The pass is a no-op while offline or while another pass is running. Items
// are submitted sequentially, oldest first. A successful submit deletes the
// local record before anything else, so a crash mid-pass cannot resubmit
// already-synced items; the follow-up notification trigger is best-effort.
// A failed submit leaves the record in place and the pass moves on — one
// bad item must not starve the rest of the queue.
func (q *Queue) Synchronize(ctx context.Context) (Report, error) {
	if !q.net.Online() {
		return Report{}, nil
	}

	if !q.syncMu.TryLock() {
		return Report{}, nil
	}
	defer q.syncMu.Unlock()

	items, err := q.store.ListPending()
	if err != nil {
		return Report{}, fmt.Errorf("list pending questions: %w", err)
	}

	var rep Report

	for _, item := range items {
		remoteID, err := q.remote.SubmitQuestion(ctx, item.Category, item.QuestionText)
		if err != nil {
			if errors.Is(err, remote.ErrRejected) {
				rep.Rejected++
				zlog.Logger.Warn().Err(err).Str("id", item.ID).Msg("question rejected by server, left pending")
			} else {
				zlog.Logger.Error().Err(err).Str("id", item.ID).Msg("failed to submit pending question")
			}

			rep.Remaining++
			continue
		}

		if err := q.store.DeletePending(item.ID); err != nil {
			zlog.Logger.Error().Err(err).Str("id", item.ID).Msg("failed to delete synced question")
		}

		rep.Succeeded++

		if err := q.remote.TriggerNewQuestionNotify(ctx, remoteID); err != nil {
			zlog.Logger.Warn().Err(err).Str("question_id", remoteID.String()).Msg("failed to trigger new question notification")
		}
	}

	if rep.Succeeded > 0 {
		zlog.Logger.Info().Int("succeeded", rep.Succeeded).Int("remaining", rep.Remaining).Msg("pending questions synchronized")
	}

	return rep, nil
}

// Run synchronizes once if already online, then re-synchronizes on every
// became-online transition until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	sub := q.net.Subscribe()
	defer sub.Close()

	if q.net.Online() {
		if _, err := q.Synchronize(ctx); err != nil {
			zlog.Logger.Error().Err(err).Msg("initial synchronization failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}

			if ev != connectivity.Online {
				continue
			}

			if _, err := q.Synchronize(ctx); err != nil {
				zlog.Logger.Error().Err(err).Msg("synchronization failed")
			}
		}
	}
}
