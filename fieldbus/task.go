package fieldbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-wheelcal/logger"
)

// TaskFunc performs one iteration of a task managed by the TaskManager.
// It should return true to keep the task running, or false to stop it.
type TaskFunc func() bool

// TaskManager manages the lifecycle of the background loops of a master session.
//
// Each task owns its own stop signal, derived from the manager's context, so loops can be stopped
// independently with Stop and joined together with Wait.
//
// Example Usage:
//
//	taskMgr := fieldbus.NewTaskManager(ctx, logger)
//
//	// run exchange() every 10ms
//	err := taskMgr.StartInterval("cyclic", exchange, 10*time.Millisecond, false)
//
//	// stop one task, or all of them
//	taskMgr.Stop("cyclic")
//	taskMgr.StopAll()
//
//	// wait for all goroutines to terminate
//	taskMgr.Wait()
type TaskManager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32

	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

// NewTaskManager creates a new TaskManager with the given context as the parent context and logger.
func NewTaskManager(ctx context.Context, l logger.Logger) *TaskManager {
	mgr := &TaskManager{
		logger: l,
		tasks:  make(map[string]context.CancelFunc),
	}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// StartInterval starts a goroutine that executes taskFunc every interval until the task is stopped,
// the manager is stopped, or taskFunc returns false.
// If runNow is true, taskFunc is executed once immediately on the new goroutine.
func (mgr *TaskManager) StartInterval(name string, taskFunc TaskFunc, interval time.Duration, runNow bool) error {
	mgr.logger.Debug("StartInterval task", "name", name, "interval", interval, "runNow", runNow)

	if interval <= 0 {
		return fmt.Errorf("invalid interval: %v", interval)
	}

	taskCtx, err := mgr.register(name)
	if err != nil {
		return err
	}

	started := make(chan struct{})
	mgr.wg.Add(1)

	go func() {
		defer mgr.wg.Done()

		ticker := time.NewTicker(interval)
		mgr.count.Add(1)
		close(started)

		defer func() {
			ticker.Stop()
			mgr.unregister(name)
			mgr.count.Add(-1)
			mgr.logger.Debug(fmt.Sprintf("%s task terminated", name), "task_count", mgr.TaskCount())
		}()

		if runNow && !mgr.callWithRecover(name, taskFunc) {
			return
		}

		for {
			select {
			case <-taskCtx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	}()

	select {
	case <-started:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for %s to start", name)
	}
}

// Stop signals the named task to stop. It returns an error if no such task is running.
func (mgr *TaskManager) Stop(name string) error {
	mgr.mu.Lock()
	cancel, ok := mgr.tasks[name]
	mgr.mu.Unlock()

	if !ok {
		return fmt.Errorf("task %s not found", name)
	}
	cancel()

	return nil
}

// StopAll signals all running tasks and rejects new ones.
func (mgr *TaskManager) StopAll() {
	mgr.cancel()
}

// Wait waits for all goroutines to terminate.
func (mgr *TaskManager) Wait() {
	mgr.wg.Wait()
}

// IsRunning returns if the named task is running.
func (mgr *TaskManager) IsRunning(name string) bool {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	_, ok := mgr.tasks[name]
	return ok
}

// TaskCount returns the number of currently running goroutines.
func (mgr *TaskManager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *TaskManager) register(name string) (context.Context, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	select {
	case <-mgr.ctx.Done():
		return nil, fmt.Errorf("task manager already stopped")
	default:
	}

	if _, ok := mgr.tasks[name]; ok {
		return nil, fmt.Errorf("task %s already exists", name)
	}

	ctx, cancel := context.WithCancel(mgr.ctx)
	mgr.tasks[name] = cancel

	return ctx, nil
}

func (mgr *TaskManager) unregister(name string) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if cancel, ok := mgr.tasks[name]; ok {
		cancel()
		delete(mgr.tasks, name)
	}
}

// callWithRecover calls a function that returns bool with panic protection.
// A panicking iteration is logged and the task keeps running.
func (mgr *TaskManager) callWithRecover(name string, fn TaskFunc) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			ok = true
		}
	}()

	return fn()
}
