package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/decomb/domain"
)

func TestNewParallelExecutor(t *testing.T) {
	impl, ok := NewParallelExecutor().(*ParallelExecutorImpl)
	require.True(t, ok)
	assert.Equal(t, domain.DefaultMaxConcurrency, impl.maxConcurrency)
	assert.Equal(t, time.Duration(domain.DefaultTimeoutSeconds)*time.Second, impl.timeout)
}

func TestParallelExecutor_Execute(t *testing.T) {
	t.Run("no tasks", func(t *testing.T) {
		assert.NoError(t, NewParallelExecutor().Execute(context.Background(), nil))
	})

	t.Run("runs every enabled task", func(t *testing.T) {
		var counter int32
		tasks := []domain.ExecutableTask{}
		for i := 0; i < 6; i++ {
			tasks = append(tasks, NewSimpleTask("fn", i != 5, func(ctx context.Context) (interface{}, error) {
				atomic.AddInt32(&counter, 1)
				return nil, nil
			}))
		}

		require.NoError(t, NewParallelExecutor().Execute(context.Background(), tasks))
		assert.Equal(t, int32(5), counter, "the disabled task must not run")
	})

	t.Run("reports every failure", func(t *testing.T) {
		first, second := errors.New("error 1"), errors.New("error 2")
		tasks := []domain.ExecutableTask{
			NewSimpleTask("fail-1", true, func(ctx context.Context) (interface{}, error) { return nil, first }),
			NewSimpleTask("fail-2", true, func(ctx context.Context) (interface{}, error) { return nil, second }),
			NewSimpleTask("ok", true, func(ctx context.Context) (interface{}, error) { return nil, nil }),
		}

		err := NewParallelExecutor().Execute(context.Background(), tasks)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2 errors")
		assert.ErrorIs(t, err, first)
		assert.ErrorIs(t, err, second)
	})

	t.Run("recovers panics", func(t *testing.T) {
		var ran int32
		tasks := []domain.ExecutableTask{
			NewSimpleTask("boom", true, func(ctx context.Context) (interface{}, error) { panic("bad graph") }),
			NewSimpleTask("fine", true, func(ctx context.Context) (interface{}, error) {
				atomic.AddInt32(&ran, 1)
				return nil, nil
			}),
		}

		err := NewParallelExecutor().Execute(context.Background(), tasks)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.Contains(t, err.Error(), "bad graph")
		assert.Equal(t, int32(1), ran)
	})
}

func TestParallelExecutor_Execute_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	task := NewSimpleTask("long-task", true, func(ctx context.Context) (interface{}, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	go func() {
		<-started
		cancel()
	}()

	err := NewParallelExecutor().Execute(ctx, []domain.ExecutableTask{task})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParallelExecutor_Execute_WithConcurrencyLimit(t *testing.T) {
	executor := NewParallelExecutor()
	executor.SetMaxConcurrency(2)

	var maxConcurrent, current int32
	tasks := make([]domain.ExecutableTask, 6)
	for i := range tasks {
		tasks[i] = NewSimpleTask("task", true, func(ctx context.Context) (interface{}, error) {
			now := atomic.AddInt32(&current, 1)
			for {
				seen := atomic.LoadInt32(&maxConcurrent)
				if now <= seen || atomic.CompareAndSwapInt32(&maxConcurrent, seen, now) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil, nil
		})
	}

	require.NoError(t, executor.Execute(context.Background(), tasks))
	assert.LessOrEqual(t, atomic.LoadInt32(&maxConcurrent), int32(2))
}

func TestParallelExecutor_Execute_Timeout(t *testing.T) {
	executor := NewParallelExecutor()
	executor.SetTimeout(50 * time.Millisecond)

	task := NewSimpleTask("slow-task", true, func(ctx context.Context) (interface{}, error) {
		time.Sleep(200 * time.Millisecond)
		return nil, nil
	})

	err := executor.Execute(context.Background(), []domain.ExecutableTask{task})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSimpleTask(t *testing.T) {
	task := NewSimpleTask("nil-func", true, nil)
	assert.Equal(t, "nil-func", task.Name())
	assert.True(t, task.IsEnabled())

	result, err := task.Execute(context.Background())
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no execute function")

	task = NewSimpleTask("value", false, func(ctx context.Context) (interface{}, error) { return 42, nil })
	assert.False(t, task.IsEnabled())
	result, err = task.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}
