// Package schedulers contains the periodic job families the orchestrator
// supervises: connector order imports and request lifecycle processing.
package schedulers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/geonexus/extractd/scheduler"
)

// Processor is one request lifecycle step executed on each processing tick.
type Processor interface {
	Run(ctx context.Context)
}

// RequestsProcessingScheduler drives the request lifecycle processors on a
// single fixed-delay task. Processors run sequentially within a tick, which
// serializes every per-request mutation.
type RequestsProcessingScheduler struct {
	registrar  scheduler.Registrar
	frequency  time.Duration
	processors []Processor
	logger     *zap.SugaredLogger

	mu     sync.Mutex
	handle scheduler.Handle
}

// NewRequestsProcessingScheduler creates the processing scheduler. The
// processors run in the given order on every tick.
func NewRequestsProcessingScheduler(registrar scheduler.Registrar, frequency time.Duration,
	logger *zap.SugaredLogger, processors ...Processor) *RequestsProcessingScheduler {
	return &RequestsProcessingScheduler{
		registrar:  registrar,
		frequency:  frequency,
		processors: processors,
		logger:     logger,
	}
}

// Name identifies the scheduler in logs.
func (s *RequestsProcessingScheduler) Name() string { return "requests-processing" }

// SetFrequency changes the tick cadence. A running tick task keeps its
// current delay; the new one applies the next time jobs are scheduled.
func (s *RequestsProcessingScheduler) SetFrequency(frequency time.Duration) {
	s.mu.Lock()
	s.frequency = frequency
	s.mu.Unlock()
}

// ScheduleJobs starts the processing tick. Repeated calls are no-ops.
func (s *RequestsProcessingScheduler) ScheduleJobs() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return
	}

	s.handle = s.registrar.ScheduleFixedDelay(
		scheduler.TaskFunc{TaskName: s.Name(), Fn: s.tick}, s.frequency)
	s.logger.Infow("Request processing scheduled", "frequency", s.frequency)
}

// UnscheduleJobs stops the processing tick. Safe to call when not scheduled.
func (s *RequestsProcessingScheduler) UnscheduleJobs() {
	s.mu.Lock()
	handle := s.handle
	s.handle = nil
	s.mu.Unlock()

	if handle == nil {
		return
	}
	handle.Cancel()
	s.logger.Infow("Request processing unscheduled")
}

func (s *RequestsProcessingScheduler) tick(ctx context.Context) {
	for _, processor := range s.processors {
		if ctx.Err() != nil {
			return
		}
		processor.Run(ctx)
	}
}
