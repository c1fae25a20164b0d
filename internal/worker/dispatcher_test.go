package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/retry"

	"questionbox/internal/rabbitmq/queue"
)

type fakeConsumer struct {
	msgs []queue.NotifyMessage
}

func (f *fakeConsumer) Consume(ctx context.Context, out chan<- queue.NotifyMessage, _ retry.Strategy) error {
	for _, msg := range f.msgs {
		out <- msg
	}
	<-ctx.Done()
	return nil
}

type fakeHandler struct {
	mu      sync.Mutex
	handled []queue.NotifyMessage
}

func (f *fakeHandler) HandleMessage(_ context.Context, msg queue.NotifyMessage, _ retry.Strategy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, msg)
}

func (f *fakeHandler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handled)
}

func TestDispatcher_Run_HandlesMessages(t *testing.T) {
	msgs := []queue.NotifyMessage{
		{QuestionID: uuid.New(), EnqueuedAt: time.Now()},
		{QuestionID: uuid.New(), EnqueuedAt: time.Now()},
		{QuestionID: uuid.New(), EnqueuedAt: time.Now()},
	}

	consumer := &fakeConsumer{msgs: msgs}
	handler := &fakeHandler{}
	d := NewDispatcher(consumer, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	strategy := retry.Strategy{Attempts: 1, Delay: time.Millisecond}

	done := make(chan struct{})
	go func() {
		d.Run(ctx, strategy, 2)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return handler.count() == len(msgs)
	}, time.Second, 10*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancellation")
	}
}

func TestDispatcher_Run_StopsOnContextCancel(t *testing.T) {
	consumer := &fakeConsumer{}
	handler := &fakeHandler{}
	d := NewDispatcher(consumer, handler)

	ctx, cancel := context.WithCancel(context.Background())

	strategy := retry.Strategy{Attempts: 1, Delay: time.Millisecond}

	done := make(chan struct{})
	go func() {
		d.Run(ctx, strategy, 1)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancellation")
	}

	assert.Zero(t, handler.count())
}
