package bus

import (
	"context"
	"testing"
	"time"

	"github.com/nasubidev/splatrecorder/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRegisteredCommandResolvesValue(t *testing.T) {
	b := NewCommandBus()
	b.Register("ping", func(ctx context.Context, payload map[string]any) (any, error) {
		return "pong", nil
	})

	fut := b.Submit(context.Background(), model.Command{Name: "ping"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := fut.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "pong", res.Value)
}

func TestSubmitUnknownCommandReturnsNotFoundError(t *testing.T) {
	b := NewCommandBus()
	fut := b.Submit(context.Background(), model.Command{Name: "nope"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := fut.Wait(ctx)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.ErrorContains(t, res.Err, "nope")
}

func TestSubmitNeverBlocksCaller(t *testing.T) {
	b := NewCommandBus()
	started := make(chan struct{})
	release := make(chan struct{})
	b.Register("slow", func(ctx context.Context, payload map[string]any) (any, error) {
		close(started)
		<-release
		return nil, nil
	})

	done := make(chan struct{})
	go func() {
		b.Submit(context.Background(), model.Command{Name: "slow"})
		b.Submit(context.Background(), model.Command{Name: "slow"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked the caller")
	}
	<-started
	close(release)
}

func TestCommandsDispatchSequentially(t *testing.T) {
	b := NewCommandBus()
	var order []int
	gate := make(chan struct{})
	b.Register("first", func(ctx context.Context, payload map[string]any) (any, error) {
		<-gate
		order = append(order, 1)
		return nil, nil
	})
	b.Register("second", func(ctx context.Context, payload map[string]any) (any, error) {
		order = append(order, 2)
		return nil, nil
	})

	f1 := b.Submit(context.Background(), model.Command{Name: "first"})
	f2 := b.Submit(context.Background(), model.Command{Name: "second"})
	close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := f1.Wait(ctx)
	require.NoError(t, err)
	_, err = f2.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, order)
}

func TestFutureWaitRespectsContextCancellation(t *testing.T) {
	b := NewCommandBus()
	gate := make(chan struct{})
	b.Register("blocked", func(ctx context.Context, payload map[string]any) (any, error) {
		<-gate
		return nil, nil
	})
	fut := b.Submit(context.Background(), model.Command{Name: "blocked"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := fut.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(gate)
}

func TestHandlerErrorPropagatesToResult(t *testing.T) {
	b := NewCommandBus()
	b.Register("fail", func(ctx context.Context, payload map[string]any) (any, error) {
		return nil, assert.AnError
	})
	fut := b.Submit(context.Background(), model.Command{Name: "fail"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := fut.Wait(ctx)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, assert.AnError, res.Err)
}
