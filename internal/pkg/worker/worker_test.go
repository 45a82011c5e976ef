package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coupon_hub/internal/pkg/push"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyNotifier struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     [][]string
}

func (n *flakyNotifier) NotifyAccounts(_ context.Context, ids []string, _ push.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.calls <= n.failures {
		return errors.New("push unavailable")
	}
	n.sent = append(n.sent, ids)
	return nil
}

func (n *flakyNotifier) snapshot() (int, [][]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls, append([][]string(nil), n.sent...)
}

func TestWorkerPoolDelivers(t *testing.T) {
	n := &flakyNotifier{}
	p := NewWorkerPool(n, zap.NewNop(), 2, 8)
	p.Start()

	ids := []string{"u1", "u2"}
	require.NoError(t, p.NotifyAccounts(context.Background(), ids, push.Message{Title: "New coupon"}))
	ids[0] = "mutated"

	assert.Eventually(t, func() bool {
		_, sent := n.snapshot()
		return len(sent) == 1
	}, time.Second, 5*time.Millisecond)
	_, sent := n.snapshot()
	assert.Equal(t, []string{"u1", "u2"}, sent[0])

	require.NoError(t, p.Stop(context.Background()))
}

func TestWorkerPoolRetries(t *testing.T) {
	n := &flakyNotifier{failures: 2}
	p := NewWorkerPool(n, zap.NewNop(), 1, 8)
	p.RetryDelay = time.Millisecond
	p.Start()
	defer p.Stop(context.Background())

	require.NoError(t, p.NotifyAccounts(context.Background(), []string{"u1"}, push.Message{}))

	assert.Eventually(t, func() bool {
		calls, sent := n.snapshot()
		return calls == 3 && len(sent) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWorkerPoolGivesUp(t *testing.T) {
	n := &flakyNotifier{failures: 100}
	p := NewWorkerPool(n, zap.NewNop(), 1, 8)
	p.RetryDelay = time.Millisecond
	p.MaxRetry = 2
	p.Start()
	defer p.Stop(context.Background())

	require.NoError(t, p.NotifyAccounts(context.Background(), []string{"u1"}, push.Message{}))

	assert.Eventually(t, func() bool {
		calls, _ := n.snapshot()
		return calls == 3
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	calls, sent := n.snapshot()
	assert.Equal(t, 3, calls)
	assert.Empty(t, sent)
}

func TestWorkerPoolQueueFull(t *testing.T) {
	n := &flakyNotifier{}
	// 未启动，任务只入队不消费
	p := NewWorkerPool(n, zap.NewNop(), 1, 1)

	require.NoError(t, p.AddTask(NotifyTask{AccountIDs: []string{"a"}}))
	assert.ErrorIs(t, p.AddTask(NotifyTask{AccountIDs: []string{"b"}}), ErrQueueFull)
}

func TestWorkerPoolStop(t *testing.T) {
	n := &flakyNotifier{}
	p := NewWorkerPool(n, zap.NewNop(), 1, 8)
	p.Start()

	require.NoError(t, p.Stop(context.Background()))
	assert.ErrorIs(t, p.NotifyAccounts(context.Background(), []string{"u1"}, push.Message{}), ErrStopped)
	assert.NoError(t, p.NotifyAccounts(context.Background(), nil, push.Message{}))
}
