package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/reminder"
	"taskboard/pkg/trace"
)

type fakeSweeper struct {
	calls   atomic.Int32
	err     error
	traceID atomic.Value
	block   chan struct{}
}

func (f *fakeSweeper) RunPeriodicSweep(ctx context.Context) (reminder.SweepResult, error) {
	f.calls.Add(1)
	f.traceID.Store(trace.FromContext(ctx))
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return reminder.SweepResult{}, f.err
	}
	return reminder.SweepResult{Scanned: 2, RemindersSent: 1, TaskIDs: []string{"t1"}}, nil
}

func TestRunOnce(t *testing.T) {
	sw := &fakeSweeper{}
	s, err := New(sw, "@every 1h", time.Second, nil)
	require.NoError(t, err)

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemindersSent)
	assert.Equal(t, []string{"t1"}, res.TaskIDs)
	assert.NotEmpty(t, sw.traceID.Load())
}

func TestRunOnceError(t *testing.T) {
	sw := &fakeSweeper{err: errors.New("db down")}
	s, err := New(sw, "@every 1h", 0, nil)
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestInvalidSchedule(t *testing.T) {
	_, err := New(&fakeSweeper{}, "every now and then", time.Second, nil)
	assert.ErrorContains(t, err, "invalid sweep schedule")
}

func TestCronSkipsOverlappingRuns(t *testing.T) {
	sw := &fakeSweeper{block: make(chan struct{})}
	s, err := New(sw, "@every 1s", 0, nil)
	require.NoError(t, err)

	s.Start()
	// let several ticks pass while the first sweep is stuck
	time.Sleep(2500 * time.Millisecond)
	assert.Equal(t, int32(1), sw.calls.Load())

	close(sw.block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
}
