package fieldbus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-wheelcal/logger"
	"github.com/stretchr/testify/require"
)

func TestTaskManager_StartInterval(t *testing.T) {
	require := require.New(t)

	taskMgr := NewTaskManager(context.Background(), logger.NewMockLogger().AllowAll())

	var cyclic, monitor atomic.Int32
	require.NoError(taskMgr.StartInterval("cyclic", func() bool {
		cyclic.Add(1)
		return true
	}, 5*time.Millisecond, true))
	require.NoError(taskMgr.StartInterval("monitor", func() bool {
		monitor.Add(1)
		return true
	}, 5*time.Millisecond, false))

	require.Error(taskMgr.StartInterval("cyclic", func() bool { return true }, time.Millisecond, false))
	require.Error(taskMgr.StartInterval("bad", func() bool { return true }, 0, false))

	require.Eventually(func() bool {
		return cyclic.Load() > 3 && monitor.Load() > 3
	}, time.Second, 5*time.Millisecond)
	require.Equal(2, taskMgr.TaskCount())

	// stopping one task leaves the other running
	require.NoError(taskMgr.Stop("cyclic"))
	require.Eventually(func() bool { return !taskMgr.IsRunning("cyclic") }, time.Second, 5*time.Millisecond)
	require.True(taskMgr.IsRunning("monitor"))

	before := monitor.Load()
	require.Eventually(func() bool { return monitor.Load() > before }, time.Second, 5*time.Millisecond)

	taskMgr.StopAll()
	taskMgr.Wait()
	require.Equal(0, taskMgr.TaskCount())
	require.Error(taskMgr.Stop("monitor"))
	require.Error(taskMgr.StartInterval("late", func() bool { return true }, time.Millisecond, false))
}

func TestTaskManager_TaskReturnsFalse(t *testing.T) {
	require := require.New(t)

	taskMgr := NewTaskManager(context.Background(), logger.NewMockLogger().AllowAll())

	var runs atomic.Int32
	require.NoError(taskMgr.StartInterval("once", func() bool {
		runs.Add(1)
		return false
	}, time.Millisecond, true))

	taskMgr.Wait()
	require.Equal(int32(1), runs.Load())
	require.False(taskMgr.IsRunning("once"))
}

func TestTaskManager_RecoverPanic(t *testing.T) {
	require := require.New(t)

	taskMgr := NewTaskManager(context.Background(), logger.NewMockLogger().AllowAll())

	var runs atomic.Int32
	require.NoError(taskMgr.StartInterval("panicky", func() bool {
		if runs.Add(1) == 1 {
			panic("boom")
		}
		return true
	}, time.Millisecond, false))

	require.Eventually(func() bool { return runs.Load() > 2 }, time.Second, time.Millisecond)

	taskMgr.StopAll()
	taskMgr.Wait()
}
