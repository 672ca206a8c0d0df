package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taskflow/core/internal/infrastructure/logger"
)

func TestSchedulerRunsJobs(t *testing.T) {
	s := New(logger.NewNop(), time.Second)

	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := New(logger.NewNop(), 0)
	assert.Error(t, s.Add("bad", "not a spec", func(context.Context) error { return nil }))
}

func TestSchedulerLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := New(logger.FromZap(zap.New(core)), 0)

	s.run("broken", func(context.Context) error { return errors.New("boom") })

	failed := logs.FilterMessage("Job failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0].ContextMap()["job"])
}

func TestStopCancelsJobContext(t *testing.T) {
	s := New(logger.NewNop(), 0)
	s.Stop()
	assert.Error(t, s.ctx.Err())
}
