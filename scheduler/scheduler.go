// Package scheduler provides fixed-delay task scheduling for the background
// jobs of the orchestration core.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of periodic work. Run is invoked from a single goroutine
// per registration, so a task never overlaps with itself.
type Task interface {
	// Name identifies the task in logs
	Name() string

	// Run performs one execution of the task. The context is cancelled when
	// the task is unscheduled or the registrar shuts down.
	Run(ctx context.Context)
}

// TaskFunc adapts a plain function to the Task interface.
type TaskFunc struct {
	TaskName string
	Fn       func(ctx context.Context)
}

func (t TaskFunc) Name() string { return t.TaskName }

func (t TaskFunc) Run(ctx context.Context) { t.Fn(ctx) }

// Handle controls one scheduled task.
type Handle interface {
	// Cancel stops the task and waits for any in-flight execution to finish.
	// Cancel is idempotent.
	Cancel()
}

// Registrar schedules tasks for repeated execution.
type Registrar interface {
	// ScheduleFixedDelay runs the task immediately, then again after the
	// given delay has elapsed since the previous execution completed.
	ScheduleFixedDelay(task Task, delay time.Duration) Handle
}

// TimerRegistrar runs each scheduled task on its own goroutine with
// fixed-delay semantics. A zero TimerRegistrar is not usable; construct with
// NewTimerRegistrar.
type TimerRegistrar struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.SugaredLogger
}

// NewTimerRegistrar creates a registrar whose tasks all stop when the parent
// context is cancelled or Shutdown is called.
func NewTimerRegistrar(ctx context.Context, logger *zap.SugaredLogger) *TimerRegistrar {
	registrarCtx, cancel := context.WithCancel(ctx)
	return &TimerRegistrar{
		ctx:    registrarCtx,
		cancel: cancel,
		logger: logger,
	}
}

// ScheduleFixedDelay starts the task loop. The first execution happens
// immediately; each subsequent one starts delay after the previous completed.
func (r *TimerRegistrar) ScheduleFixedDelay(task Task, delay time.Duration) Handle {
	taskCtx, cancel := context.WithCancel(r.ctx)
	h := &timerHandle{cancel: cancel}

	r.wg.Add(1)
	h.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer h.wg.Done()
		r.run(taskCtx, task, delay)
	}()

	r.logger.Debugw("Scheduled fixed-delay task", "task", task.Name(), "delay", delay)
	return h
}

func (r *TimerRegistrar) run(ctx context.Context, task Task, delay time.Duration) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			task.Run(ctx)
			if ctx.Err() != nil {
				return
			}
			timer.Reset(delay)
		}
	}
}

// Shutdown cancels every scheduled task and waits for in-flight executions.
func (r *TimerRegistrar) Shutdown() {
	r.cancel()
	r.wg.Wait()
	r.logger.Debugw("Task registrar stopped")
}

type timerHandle struct {
	once   sync.Once
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (h *timerHandle) Cancel() {
	h.once.Do(func() {
		h.cancel()
		h.wg.Wait()
	})
}
