package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/portfolio_snapshots/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskWithRecoverAssignsRequestID(t *testing.T) {
	s := &Scheduler{}
	var seen []string

	task := s.taskWithRecover(func(ctx context.Context) error {
		seen = append(seen, utils.GetRequestIDFromCtx(ctx))
		return nil
	}, "test")

	task(context.Background())
	task(context.Background())

	require.Len(t, seen, 2)
	assert.NotEmpty(t, seen[0])
	assert.NotEqual(t, seen[0], seen[1])
}

func TestTaskWithRecoverSurvivesPanicAndError(t *testing.T) {
	s := &Scheduler{}

	assert.NotPanics(t, func() {
		s.taskWithRecover(func(context.Context) error { panic("boom") }, "panicking")(context.Background())
	})
	assert.NotPanics(t, func() {
		s.taskWithRecover(func(context.Context) error { return errors.New("failed") }, "failing")(context.Background())
	})
}

func TestIntervalJobStartsImmediately(t *testing.T) {
	s := New()
	ran := make(chan string, 1)

	s.NewIntervalJob("immediate", func(ctx context.Context) error {
		select {
		case ran <- utils.GetRequestIDFromCtx(ctx):
		default:
		}
		return nil
	}, time.Hour, true)

	s.Start()
	defer s.Stop()

	select {
	case rqID := <-ran:
		assert.NotEmpty(t, rqID)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestNewCrontabJobRejectsBadSpec(t *testing.T) {
	s := New()
	defer s.Stop()

	assert.Panics(t, func() {
		s.NewCrontabJob("bad", func(context.Context) error { return nil }, "not a crontab", false)
	})
}
