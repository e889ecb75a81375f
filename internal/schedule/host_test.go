package schedule

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *TimerHost) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx) }()
	return func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	}
}

func TestTimerHost_ClampsToMinInterval(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := NewTimerHost(time.Minute, 10*time.Second)
		ran := make(chan string, 1)
		require.NoError(t, h.Register("job", func(task *Task) {
			ran <- task.ID()
			task.Complete(true)
		}))
		stop := serve(t, h)
		defer stop()

		require.NoError(t, h.Submit("job", time.Second))

		time.Sleep(30 * time.Second)
		synctest.Wait()
		assert.Empty(t, ran)

		time.Sleep(31 * time.Second)
		synctest.Wait()
		assert.Equal(t, "job", <-ran)
	})
}

func TestTimerHost_SubmitReplacesPending(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := NewTimerHost(0, time.Second)
		ran := make(chan struct{}, 4)
		require.NoError(t, h.Register("job", func(task *Task) {
			ran <- struct{}{}
			task.Complete(true)
		}))
		stop := serve(t, h)
		defer stop()

		require.NoError(t, h.Submit("job", time.Minute))
		require.NoError(t, h.Submit("job", 2*time.Minute))

		time.Sleep(90 * time.Second)
		synctest.Wait()
		assert.Empty(t, ran)

		time.Sleep(time.Minute)
		synctest.Wait()
		assert.Len(t, ran, 1)
	})
}

func TestTimerHost_Cancel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := NewTimerHost(0, time.Second)
		ran := make(chan struct{}, 1)
		require.NoError(t, h.Register("job", func(task *Task) {
			ran <- struct{}{}
			task.Complete(true)
		}))
		stop := serve(t, h)
		defer stop()

		require.NoError(t, h.Submit("job", time.Minute))
		h.Cancel("job")

		time.Sleep(2 * time.Minute)
		synctest.Wait()
		assert.Empty(t, ran)
	})
}

func TestTimerHost_Budget(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := NewTimerHost(0, 10*time.Second)
		expired := make(chan struct{}, 1)
		reported := make(chan bool, 1)
		require.NoError(t, h.Register("job", func(task *Task) {
			task.SetExpirationHandler(func() {
				assert.NoError(t, task.Context().Err(), "handler must run before cancellation")
				expired <- struct{}{}
			})
			<-task.Context().Done()
			reported <- task.Complete(true)
		}))
		stop := serve(t, h)
		defer stop()

		require.NoError(t, h.Submit("job", 0))
		time.Sleep(11 * time.Second)
		synctest.Wait()

		assert.Len(t, expired, 1)
		assert.False(t, <-reported)
	})
}

func TestTimerHost_Registration(t *testing.T) {
	h := NewTimerHost(0, time.Second)

	err := h.Submit("missing", time.Second)
	assert.True(t, errors.Is(err, ErrUnknownTask))

	require.NoError(t, h.Register("job", func(task *Task) { task.Complete(true) }))
	assert.Error(t, h.Register("job", func(task *Task) { task.Complete(true) }))
}

func TestDeferred(t *testing.T) {
	var d Deferred[Syncer]
	_, err := d.Get()
	assert.Error(t, err)

	engine := &fakeEngine{}
	d.Set(engine)
	got, err := d.Get()
	require.NoError(t, err)
	assert.Same(t, engine, got)
}

func TestTaskCompleteOnce(t *testing.T) {
	task := newTask(context.Background(), "job")
	assert.True(t, task.Complete(true))
	assert.False(t, task.Complete(false))
	assert.Error(t, task.Context().Err())
	task.expire()
	assert.False(t, task.Expired())
}
