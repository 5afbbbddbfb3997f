package scheduler

import (
	"context"
	"sync"
	"time"
)

// FakeRegistrar records scheduled tasks without running them on timers.
// Tests drive execution explicitly with Tick.
type FakeRegistrar struct {
	mu      sync.Mutex
	entries []*fakeEntry
}

type fakeEntry struct {
	task      Task
	delay     time.Duration
	cancelled bool
}

// NewFakeRegistrar creates an empty fake registrar.
func NewFakeRegistrar() *FakeRegistrar {
	return &FakeRegistrar{}
}

// ScheduleFixedDelay records the task. Nothing runs until Tick is called.
func (f *FakeRegistrar) ScheduleFixedDelay(task Task, delay time.Duration) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := &fakeEntry{task: task, delay: delay}
	f.entries = append(f.entries, entry)
	return &fakeHandle{registrar: f, entry: entry}
}

// Tick runs every active task once, synchronously.
func (f *FakeRegistrar) Tick(ctx context.Context) {
	f.mu.Lock()
	active := make([]Task, 0, len(f.entries))
	for _, entry := range f.entries {
		if !entry.cancelled {
			active = append(active, entry.task)
		}
	}
	f.mu.Unlock()

	for _, task := range active {
		task.Run(ctx)
	}
}

// ActiveTaskNames returns the names of tasks that have not been cancelled,
// in registration order.
func (f *FakeRegistrar) ActiveTaskNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.entries))
	for _, entry := range f.entries {
		if !entry.cancelled {
			names = append(names, entry.task.Name())
		}
	}
	return names
}

// DelayFor returns the registered delay of the first active task with the
// given name.
func (f *FakeRegistrar) DelayFor(name string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, entry := range f.entries {
		if !entry.cancelled && entry.task.Name() == name {
			return entry.delay, true
		}
	}
	return 0, false
}

type fakeHandle struct {
	registrar *FakeRegistrar
	entry     *fakeEntry
}

func (h *fakeHandle) Cancel() {
	h.registrar.mu.Lock()
	defer h.registrar.mu.Unlock()
	h.entry.cancelled = true
}
