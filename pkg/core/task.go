package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-drift/widgetkit/pkg/errors"
)

// Task is asynchronous work tracked by an instance. The instance is busy
// while any of its tasks is pending. Tasks cannot be cancelled.
type Task struct {
	done chan struct{}
	err  error
}

// Done is closed when the task completes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's error once it has completed, and nil before.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task completes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForTask runs fn on a new goroutine and tracks it as a pending task.
// Completion, successful or not, deregisters the task and schedules a
// render pass. fn's error is returned by Task.Wait and Task.Err; the
// runtime does not retry. A destroyed instance stops listening for the
// result.
func (c *Context) WaitForTask(fn func() error) *Task {
	return c.inst.waitForTask(fn)
}

func (i *Instance) waitForTask(fn func() error) *Task {
	t := &Task{done: make(chan struct{})}
	i.tasks.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				perr := &errors.PanicError{
					Op:         "core.Task",
					Value:      r,
					StackTrace: errors.CaptureStack(),
					Timestamp:  time.Now(),
				}
				errors.ReportPanic(perr)
				t.err = fmt.Errorf("task panicked: %w", perr)
			}
			// The completion pass is scheduled before the task stops
			// counting as pending.
			i.MarkNeedsRender()
			i.tasks.Add(-1)
			close(t.done)
		}()
		t.err = fn()
	}()
	return t
}
