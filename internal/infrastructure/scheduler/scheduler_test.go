package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nardi-attend/attendance-hub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j *funcJob) Name() string                  { return j.name }
func (j *funcJob) Description() string           { return "test job " + j.name }
func (j *funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := New(Config{Logger: logger.Discard(), TickInterval: 5 * time.Millisecond})

	var runs int32
	require.NoError(t, s.Register(&funcJob{name: "tick", run: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}}, NewIntervalSchedule(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_DoesNotOverlap(t *testing.T) {
	s := New(Config{Logger: logger.Discard(), TickInterval: 2 * time.Millisecond})

	var active, maxActive int32
	require.NoError(t, s.Register(&funcJob{name: "slow", run: func(ctx context.Context) error {
		n := atomic.AddInt32(&active, 1)
		if n > atomic.LoadInt32(&maxActive) {
			atomic.StoreInt32(&maxActive, n)
		}
		defer atomic.AddInt32(&active, -1)
		select {
		case <-time.After(30 * time.Millisecond):
		case <-ctx.Done():
		}
		return nil
	}}, NewIntervalSchedule(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(Config{Logger: logger.Discard()})
	boom := errors.New("boom")

	require.NoError(t, s.Register(&funcJob{name: "fails", run: func(context.Context) error { return boom }}, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "fails")
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.True(t, result.Manual)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1), jobs[0].RunCount)
	assert.Equal(t, int64(1), jobs[0].Failures)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := New(Config{Logger: logger.Discard()})
	job := &funcJob{name: "a", run: func(context.Context) error { return nil }}

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(job, nil), ErrNilSchedule)
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Hour)), ErrJobAlreadyExists)
}
