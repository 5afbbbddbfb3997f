package schedulers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/geonexus/extractd/batch"
	"github.com/geonexus/extractd/db"
	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/scheduler"
	"github.com/geonexus/extractd/store"
)

// ImportJobsScheduler runs one fixed-delay import task per active connector,
// each at the connector's own import frequency.
type ImportJobsScheduler struct {
	registrar  scheduler.Registrar
	connectors *store.ConnectorStore
	importer   *batch.ImportProcessor
	logger     *zap.SugaredLogger

	mu      sync.Mutex
	handles map[int]scheduler.Handle
}

// NewImportJobsScheduler creates the import scheduler.
func NewImportJobsScheduler(registrar scheduler.Registrar, connectors *store.ConnectorStore,
	importer *batch.ImportProcessor, logger *zap.SugaredLogger) *ImportJobsScheduler {
	return &ImportJobsScheduler{
		registrar:  registrar,
		connectors: connectors,
		importer:   importer,
		logger:     logger,
	}
}

// Name identifies the scheduler in logs.
func (s *ImportJobsScheduler) Name() string { return "connector-imports" }

// ScheduleJobs starts an import task for every active connector. Repeated
// calls are no-ops. The connector set is snapshotted at scheduling time; a
// configuration change takes effect on the next unschedule/schedule cycle.
func (s *ImportJobsScheduler) ScheduleJobs() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handles != nil {
		return
	}

	active, err := s.connectors.Active()
	if err != nil {
		s.logger.Errorw("Failed to list active connectors", "error", err)
		return
	}

	s.handles = make(map[int]scheduler.Handle, len(active))
	for _, connector := range active {
		frequency := time.Duration(connector.ImportFrequency) * time.Second
		if frequency < time.Second {
			frequency = time.Second
		}

		c := connector
		s.handles[c.ID] = s.registrar.ScheduleFixedDelay(scheduler.TaskFunc{
			TaskName: fmt.Sprintf("import-connector-%d", c.ID),
			Fn: func(ctx context.Context) {
				s.runImport(ctx, c)
			},
		}, frequency)
	}

	s.logger.Infow("Connector imports scheduled", "connectors", len(active))
}

// UnscheduleJobs stops every import task. Safe to call when not scheduled.
func (s *ImportJobsScheduler) UnscheduleJobs() {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	if handles == nil {
		return
	}
	for _, handle := range handles {
		handle.Cancel()
	}
	s.logger.Infow("Connector imports unscheduled", "connectors", len(handles))
}

func (s *ImportJobsScheduler) runImport(ctx context.Context, connector *domain.Connector) {
	// Reload so parameter edits apply without rescheduling
	current, err := s.connectors.Get(connector.ID)
	if err != nil {
		// Ticks race the database shutdown when the daemon stops
		if db.IsDatabaseClosed(err) {
			s.logger.Debugw("Skipping import, database closed",
				"connector_id", connector.ID)
			return
		}
		s.logger.Errorw("Failed to reload connector, skipping import",
			"connector_id", connector.ID, "error", err)
		return
	}
	if !current.Active {
		return
	}

	s.importer.Process(ctx, current)
}
