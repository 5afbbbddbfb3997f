package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/geonexus/extractd/config"
	"github.com/geonexus/extractd/errors"
	"github.com/geonexus/extractd/scheduler"
)

// WorkingState describes the orchestrator's current supervisory state.
type WorkingState string

const (
	// StateRunning means monitoring is active
	StateRunning WorkingState = "RUNNING"
	// StateScheduledStop means monitoring is stopped but time-window
	// supervision may start it again
	StateScheduledStop WorkingState = "SCHEDULED_STOP"
	// StateStopped means monitoring is off and nothing will start it
	StateStopped WorkingState = "STOPPED"
	// StateConfigError means the orchestrator has no usable settings
	StateConfigError WorkingState = "SCHEDULE_CONFIG_ERROR"
)

// FrequencyAware is implemented by monitoring schedulers whose tick cadence
// follows the orchestrator poll frequency. The new frequency takes effect the
// next time the jobs are scheduled.
type FrequencyAware interface {
	SetFrequency(frequency time.Duration)
}

// MonitoringScheduler is one periodic background job family the orchestrator
// supervises. Implementations must make ScheduleJobs and UnscheduleJobs
// idempotent.
type MonitoringScheduler interface {
	// Name identifies the scheduler in logs
	Name() string

	// ScheduleJobs starts the periodic jobs
	ScheduleJobs()

	// UnscheduleJobs stops the periodic jobs
	UnscheduleJobs()
}

// Orchestrator supervises the background monitoring of extraction requests.
// It is constructed once at startup and shared; all state transitions happen
// under a single lock because the time-window supervisory task and
// administrative calls may race.
type Orchestrator struct {
	mu sync.Mutex

	registrar  scheduler.Registrar
	imports    MonitoringScheduler
	processing MonitoringScheduler
	logger     *zap.SugaredLogger

	settings *Settings

	importsActive    bool
	processingActive bool
	windowHandle     scheduler.Handle

	// now is replaceable in tests
	now func() time.Time
}

// New creates an orchestrator bound to its collaborators. The orchestrator
// stays uninitialized, rejecting scheduling operations, until settings are
// supplied through SetSettings.
func New(registrar scheduler.Registrar, imports, processing MonitoringScheduler,
	logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		registrar:  registrar,
		imports:    imports,
		processing: processing,
		logger:     logger,
		now:        time.Now,
	}
}

// Settings returns the currently active settings.
// Returns ErrNotInitialized before the first SetSettings call.
func (o *Orchestrator) Settings() (Settings, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.settings == nil {
		return Settings{}, errors.Wrap(errors.ErrNotInitialized, "orchestrator has no settings")
	}
	return *o.settings, nil
}

// SetSettings installs a new settings generation. Rescheduling only happens
// when reschedule is true and the new settings differ structurally from the
// active ones, so repeated saves of an unchanged configuration never cause
// cancel/restart churn.
func (o *Orchestrator) SetSettings(settings Settings, reschedule bool) error {
	if !settings.IsValid() {
		return errors.Wrap(errors.ErrInvalidSettings, "orchestrator settings rejected")
	}

	o.mu.Lock()
	if o.settings != nil && o.settings.Equal(settings) {
		o.mu.Unlock()
		o.logger.Debugw("Orchestrator settings unchanged, keeping current schedule")
		return nil
	}

	o.settings = &settings
	o.applyFrequencyLocked()
	o.mu.Unlock()

	o.logger.Infow("Orchestrator settings updated",
		"mode", settings.Mode,
		"frequency_seconds", settings.FrequencySeconds,
		"ranges", len(settings.Ranges))

	if reschedule {
		return o.RescheduleMonitoring()
	}
	return nil
}

// UpdateSettingsFromStore reloads settings from the system parameter store
// and applies them, rescheduling only on structural change. The static
// configuration supplies fallbacks for parameters no operator has set.
func (o *Orchestrator) UpdateSettingsFromStore(params ParamSource,
	defaults config.OrchestratorConfig, reschedule bool) error {
	settings, err := LoadSettings(params, defaults)
	if err != nil {
		return err
	}
	return o.SetSettings(settings, reschedule)
}

// ScheduleMonitoring starts the import and request-processing schedulers.
// Repeated calls are no-ops; each scheduler runs at most once.
func (o *Orchestrator) ScheduleMonitoring() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.checkInitializedLocked(); err != nil {
		return err
	}

	o.scheduleMonitoringLocked()
	return nil
}

// UnscheduleMonitoring stops the import and request-processing schedulers.
// Safe to call when nothing is scheduled. When includeTimeWindowTask is true
// the time-window supervisory task is cancelled as well; otherwise it keeps
// running and may restart monitoring on its next tick.
func (o *Orchestrator) UnscheduleMonitoring(includeTimeWindowTask bool) error {
	o.mu.Lock()
	if err := o.checkInitializedLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	handle := o.unscheduleMonitoringLocked(includeTimeWindowTask)
	o.mu.Unlock()

	o.cancelWindowTask(handle)
	return nil
}

// RescheduleMonitoring stops everything, the supervisory task included, then
// re-derives scheduling from the current mode.
func (o *Orchestrator) RescheduleMonitoring() error {
	o.mu.Lock()
	if err := o.checkInitializedLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	handle := o.unscheduleMonitoringLocked(true)
	o.mu.Unlock()

	o.cancelWindowTask(handle)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.scheduleByWorkingStateLocked()
	return nil
}

// ScheduleMonitoringByWorkingState derives scheduling from the current mode:
// disabled does nothing, always-on starts monitoring directly, time-windows
// starts only the supervisory task which then toggles monitoring on window
// boundaries.
func (o *Orchestrator) ScheduleMonitoringByWorkingState() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.checkInitializedLocked(); err != nil {
		return err
	}

	o.scheduleByWorkingStateLocked()
	return nil
}

// WorkingState reports the orchestrator's supervisory state.
func (o *Orchestrator) WorkingState() WorkingState {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.settings == nil || !o.settings.IsValid() {
		return StateConfigError
	}

	switch o.settings.Mode {
	case ModeDisabled:
		return StateStopped
	case ModeAlwaysOn:
		if o.monitoringActiveLocked() {
			return StateRunning
		}
		return StateScheduledStop
	default:
		if o.monitoringActiveLocked() && o.settings.Ranges.IsInRanges(o.now()) {
			return StateRunning
		}
		return StateScheduledStop
	}
}

func (o *Orchestrator) checkInitializedLocked() error {
	if o.registrar == nil || o.imports == nil || o.processing == nil {
		return errors.Wrap(errors.ErrNotInitialized, "orchestrator collaborators missing")
	}
	if o.settings == nil {
		return errors.Wrap(errors.ErrNotInitialized, "orchestrator has no settings")
	}
	return nil
}

func (o *Orchestrator) monitoringActiveLocked() bool {
	return o.importsActive || o.processingActive
}

func (o *Orchestrator) scheduleMonitoringLocked() {
	if !o.importsActive {
		o.imports.ScheduleJobs()
		o.importsActive = true
		o.logger.Infow("Monitoring scheduled", "scheduler", o.imports.Name())
	}
	if !o.processingActive {
		o.processing.ScheduleJobs()
		o.processingActive = true
		o.logger.Infow("Monitoring scheduled", "scheduler", o.processing.Name())
	}
}

// unscheduleMonitoringLocked stops the monitoring schedulers and detaches the
// supervisory task handle, returning it for the caller to cancel. Cancel must
// happen with the lock released: it waits for an in-flight tick, and the tick
// takes the lock.
func (o *Orchestrator) unscheduleMonitoringLocked(includeTimeWindowTask bool) scheduler.Handle {
	if o.importsActive {
		o.imports.UnscheduleJobs()
		o.importsActive = false
		o.logger.Infow("Monitoring unscheduled", "scheduler", o.imports.Name())
	}
	if o.processingActive {
		o.processing.UnscheduleJobs()
		o.processingActive = false
		o.logger.Infow("Monitoring unscheduled", "scheduler", o.processing.Name())
	}

	if !includeTimeWindowTask || o.windowHandle == nil {
		return nil
	}
	handle := o.windowHandle
	o.windowHandle = nil
	return handle
}

func (o *Orchestrator) cancelWindowTask(handle scheduler.Handle) {
	if handle == nil {
		return
	}
	handle.Cancel()
	o.logger.Infow("Time window supervision cancelled")
}

func (o *Orchestrator) applyFrequencyLocked() {
	for _, s := range []MonitoringScheduler{o.imports, o.processing} {
		if aware, ok := s.(FrequencyAware); ok {
			aware.SetFrequency(o.settings.Frequency())
		}
	}
}

func (o *Orchestrator) scheduleByWorkingStateLocked() {
	switch o.settings.Mode {
	case ModeDisabled:
		o.logger.Infow("Orchestrator disabled, monitoring stays off")

	case ModeAlwaysOn:
		o.scheduleMonitoringLocked()

	case ModeTimeWindows:
		if o.windowHandle != nil {
			return
		}
		o.windowHandle = o.registrar.ScheduleFixedDelay(
			scheduler.TaskFunc{TaskName: "time-window-supervisor", Fn: o.superviseTimeWindows},
			o.settings.Frequency())
		o.logger.Infow("Time window supervision scheduled",
			"frequency_seconds", o.settings.FrequencySeconds)
	}
}

// superviseTimeWindows is the supervisory task tick. It is the sole clock
// driving on/off transitions in time-window mode.
func (o *Orchestrator) superviseTimeWindows(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.settings == nil {
		return
	}

	inRange := o.settings.Ranges.IsInRanges(o.now())
	switch {
	case inRange && !o.monitoringActiveLocked():
		o.logger.Infow("Entering activity window, starting monitoring")
		o.scheduleMonitoringLocked()
	case !inRange && o.monitoringActiveLocked():
		o.logger.Infow("Leaving activity window, stopping monitoring")
		o.unscheduleMonitoringLocked(false)
	}
}
