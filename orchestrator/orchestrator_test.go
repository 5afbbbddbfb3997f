package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geonexus/extractd/errors"
	"github.com/geonexus/extractd/scheduler"
)

type countingScheduler struct {
	mu          sync.Mutex
	name        string
	scheduled   int
	unscheduled int
	frequency   time.Duration
}

func (c *countingScheduler) Name() string { return c.name }

func (c *countingScheduler) ScheduleJobs() {
	c.mu.Lock()
	c.scheduled++
	c.mu.Unlock()
}

func (c *countingScheduler) UnscheduleJobs() {
	c.mu.Lock()
	c.unscheduled++
	c.mu.Unlock()
}

func (c *countingScheduler) SetFrequency(frequency time.Duration) {
	c.mu.Lock()
	c.frequency = frequency
	c.mu.Unlock()
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	registrar    *scheduler.FakeRegistrar
	imports      *countingScheduler
	processing   *countingScheduler
}

func newFixture(t *testing.T) *orchestratorFixture {
	t.Helper()

	registrar := scheduler.NewFakeRegistrar()
	imports := &countingScheduler{name: "imports"}
	processing := &countingScheduler{name: "processing"}

	return &orchestratorFixture{
		orchestrator: New(registrar, imports, processing, zap.NewNop().Sugar()),
		registrar:    registrar,
		imports:      imports,
		processing:   processing,
	}
}

func (f *orchestratorFixture) setClock(now time.Time) {
	f.orchestrator.now = func() time.Time { return now }
}

func alwaysOn() Settings {
	return Settings{FrequencySeconds: 20, Mode: ModeAlwaysOn}
}

func windowed(ranges ...TimeRange) Settings {
	return Settings{FrequencySeconds: 20, Mode: ModeTimeWindows, Ranges: ranges}
}

func TestOrchestratorRejectsCallsBeforeSettings(t *testing.T) {
	f := newFixture(t)

	assert.True(t, errors.IsNotInitializedError(f.orchestrator.ScheduleMonitoring()))
	assert.True(t, errors.IsNotInitializedError(f.orchestrator.UnscheduleMonitoring(true)))
	assert.True(t, errors.IsNotInitializedError(f.orchestrator.RescheduleMonitoring()))
	assert.True(t, errors.IsNotInitializedError(f.orchestrator.ScheduleMonitoringByWorkingState()))

	_, err := f.orchestrator.Settings()
	assert.True(t, errors.IsNotInitializedError(err))

	assert.Equal(t, StateConfigError, f.orchestrator.WorkingState())
}

func TestOrchestratorScheduleMonitoringIsIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orchestrator.SetSettings(alwaysOn(), false))

	require.NoError(t, f.orchestrator.ScheduleMonitoring())
	require.NoError(t, f.orchestrator.ScheduleMonitoring())

	assert.Equal(t, 1, f.imports.scheduled)
	assert.Equal(t, 1, f.processing.scheduled)
}

func TestOrchestratorUnscheduleWhenNothingScheduled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orchestrator.SetSettings(alwaysOn(), false))

	require.NoError(t, f.orchestrator.UnscheduleMonitoring(true))
	assert.Zero(t, f.imports.unscheduled)
	assert.Zero(t, f.processing.unscheduled)
}

func TestOrchestratorSetSettingsRejectsInvalid(t *testing.T) {
	f := newFixture(t)

	err := f.orchestrator.SetSettings(Settings{FrequencySeconds: 0, Mode: ModeAlwaysOn}, false)
	assert.True(t, errors.Is(err, errors.ErrInvalidSettings))
}

func TestOrchestratorSettingsNoOpReschedule(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orchestrator.SetSettings(alwaysOn(), true))

	assert.Equal(t, 1, f.imports.scheduled)

	// Structurally equal settings must not trigger rescheduling even when
	// asked to reschedule
	require.NoError(t, f.orchestrator.SetSettings(alwaysOn(), true))
	assert.Equal(t, 1, f.imports.scheduled)
	assert.Zero(t, f.imports.unscheduled)
}

func TestOrchestratorSettingsChangeReschedules(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orchestrator.SetSettings(alwaysOn(), true))
	require.Equal(t, 1, f.imports.scheduled)

	changed := alwaysOn()
	changed.FrequencySeconds = 60
	require.NoError(t, f.orchestrator.SetSettings(changed, true))

	assert.Equal(t, 1, f.imports.unscheduled)
	assert.Equal(t, 2, f.imports.scheduled)
}

func TestOrchestratorScheduleByWorkingStateDisabled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orchestrator.SetSettings(
		Settings{FrequencySeconds: 20, Mode: ModeDisabled}, false))

	require.NoError(t, f.orchestrator.ScheduleMonitoringByWorkingState())

	assert.Zero(t, f.imports.scheduled)
	assert.Empty(t, f.registrar.ActiveTaskNames())
	assert.Equal(t, StateStopped, f.orchestrator.WorkingState())
}

func TestOrchestratorScheduleByWorkingStateAlwaysOn(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orchestrator.SetSettings(alwaysOn(), false))

	require.NoError(t, f.orchestrator.ScheduleMonitoringByWorkingState())

	assert.Equal(t, 1, f.imports.scheduled)
	assert.Equal(t, 1, f.processing.scheduled)
	assert.Empty(t, f.registrar.ActiveTaskNames(), "no supervisory task in always-on mode")
	assert.Equal(t, StateRunning, f.orchestrator.WorkingState())
}

func TestOrchestratorTimeWindowSupervision(t *testing.T) {
	f := newFixture(t)
	officeHours := TimeRange{StartDay: 1, EndDay: 5, StartTime: "08:00", EndTime: "18:00"}
	require.NoError(t, f.orchestrator.SetSettings(windowed(officeHours), false))

	require.NoError(t, f.orchestrator.ScheduleMonitoringByWorkingState())

	// Only the supervisory task is scheduled; monitoring waits for a window
	assert.Equal(t, []string{"time-window-supervisor"}, f.registrar.ActiveTaskNames())
	assert.Zero(t, f.imports.scheduled)

	delay, ok := f.registrar.DelayFor("time-window-supervisor")
	require.True(t, ok)
	assert.Equal(t, 20*time.Second, delay)

	// Saturday: outside the window, nothing starts
	f.setClock(at(15, 12, 0))
	f.registrar.Tick(context.Background())
	assert.Zero(t, f.imports.scheduled)
	assert.Equal(t, StateScheduledStop, f.orchestrator.WorkingState())

	// Monday morning: the supervisor starts monitoring
	f.setClock(at(10, 9, 0))
	f.registrar.Tick(context.Background())
	assert.Equal(t, 1, f.imports.scheduled)
	assert.Equal(t, 1, f.processing.scheduled)
	assert.Equal(t, StateRunning, f.orchestrator.WorkingState())

	// Still inside the window: no double scheduling
	f.registrar.Tick(context.Background())
	assert.Equal(t, 1, f.imports.scheduled)

	// Monday evening: the supervisor stops monitoring but keeps running
	f.setClock(at(10, 19, 0))
	f.registrar.Tick(context.Background())
	assert.Equal(t, 1, f.imports.unscheduled)
	assert.Equal(t, []string{"time-window-supervisor"}, f.registrar.ActiveTaskNames())
	assert.Equal(t, StateScheduledStop, f.orchestrator.WorkingState())
}

func TestOrchestratorRescheduleCancelsSupervisor(t *testing.T) {
	f := newFixture(t)
	officeHours := TimeRange{StartDay: 1, EndDay: 5, StartTime: "08:00", EndTime: "18:00"}
	require.NoError(t, f.orchestrator.SetSettings(windowed(officeHours), false))
	require.NoError(t, f.orchestrator.ScheduleMonitoringByWorkingState())
	require.Equal(t, []string{"time-window-supervisor"}, f.registrar.ActiveTaskNames())

	disabled := Settings{FrequencySeconds: 20, Mode: ModeDisabled}
	require.NoError(t, f.orchestrator.SetSettings(disabled, true))

	assert.Empty(t, f.registrar.ActiveTaskNames())
	assert.Equal(t, StateStopped, f.orchestrator.WorkingState())
}

func TestOrchestratorUnscheduleKeepsSupervisorUnlessAsked(t *testing.T) {
	f := newFixture(t)
	allWeek := TimeRange{StartDay: 1, EndDay: 7, StartTime: "00:00", EndTime: "23:59"}
	require.NoError(t, f.orchestrator.SetSettings(windowed(allWeek), false))
	require.NoError(t, f.orchestrator.ScheduleMonitoringByWorkingState())

	f.setClock(at(10, 12, 0))
	f.registrar.Tick(context.Background())
	require.Equal(t, 1, f.imports.scheduled)

	require.NoError(t, f.orchestrator.UnscheduleMonitoring(false))
	assert.Equal(t, 1, f.imports.unscheduled)
	assert.Equal(t, []string{"time-window-supervisor"}, f.registrar.ActiveTaskNames())

	// The supervisor restarts monitoring on its next tick
	f.registrar.Tick(context.Background())
	assert.Equal(t, 2, f.imports.scheduled)

	require.NoError(t, f.orchestrator.UnscheduleMonitoring(true))
	assert.Empty(t, f.registrar.ActiveTaskNames())
}

func TestOrchestratorRescheduleDuringSupervisoryTick(t *testing.T) {
	registrar := scheduler.NewTimerRegistrar(context.Background(), zap.NewNop().Sugar())
	defer registrar.Shutdown()

	orch := New(registrar,
		&countingScheduler{name: "imports"},
		&countingScheduler{name: "processing"},
		zap.NewNop().Sugar())

	settings := windowed(TimeRange{StartDay: 1, EndDay: 7, StartTime: "00:00", EndTime: "23:59"})
	settings.FrequencySeconds = 1
	require.NoError(t, orch.SetSettings(settings, false))
	require.NoError(t, orch.ScheduleMonitoringByWorkingState())

	// Every reschedule cancels a supervisory task whose first tick fires
	// immediately, so cancellation keeps racing an in-flight tick.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if err := orch.RescheduleMonitoring(); err != nil {
				t.Errorf("reschedule failed: %v", err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("rescheduling blocked behind a supervisory tick")
	}

	require.NoError(t, orch.UnscheduleMonitoring(true))
}

func TestOrchestratorPropagatesFrequencyToSchedulers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orchestrator.SetSettings(alwaysOn(), true))
	assert.Equal(t, 20*time.Second, f.imports.frequency)
	assert.Equal(t, 20*time.Second, f.processing.frequency)

	changed := alwaysOn()
	changed.FrequencySeconds = 45
	require.NoError(t, f.orchestrator.SetSettings(changed, true))
	assert.Equal(t, 45*time.Second, f.processing.frequency)
}

func TestOrchestratorUpdateSettingsFromStore(t *testing.T) {
	f := newFixture(t)

	params := fakeParams{
		"scheduler_mode":      "ALWAYS_ON",
		"scheduler_frequency": "30",
	}
	require.NoError(t, f.orchestrator.UpdateSettingsFromStore(
		params, defaultOrchestratorConfig(), true))

	settings, err := f.orchestrator.Settings()
	require.NoError(t, err)
	assert.Equal(t, 30, settings.FrequencySeconds)
	assert.Equal(t, 1, f.imports.scheduled)
}
