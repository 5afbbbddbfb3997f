// Package commands holds the extractd CLI commands.
package commands

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/geonexus/extractd/batch"
	"github.com/geonexus/extractd/config"
	"github.com/geonexus/extractd/db"
	"github.com/geonexus/extractd/errors"
	"github.com/geonexus/extractd/logger"
	"github.com/geonexus/extractd/matching"
	"github.com/geonexus/extractd/notify"
	"github.com/geonexus/extractd/orchestrator"
	"github.com/geonexus/extractd/orchestrator/schedulers"
	"github.com/geonexus/extractd/plugin"
	"github.com/geonexus/extractd/scheduler"
	"github.com/geonexus/extractd/store"
	"github.com/geonexus/extractd/version"
)

// settingsRefreshInterval is how often the daemon re-reads the scheduler
// parameters from the database.
const settingsRefreshInterval = time.Minute

// StartCmd runs the orchestration daemon until interrupted.
var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the orchestration daemon",
	Long: `Start the extractd orchestration daemon.

The daemon schedules connector order imports and request lifecycle
processing according to the configured scheduling mode and runs until it
receives an interrupt or termination signal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
}

func runDaemon(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	log := logger.Logger

	conn, err := db.Open(cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.Migrate(conn, log); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Requests.BasePath, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create requests base folder %s", cfg.Requests.BasePath)
	}

	requests := store.NewRequestStore(conn)
	rules := store.NewRuleStore(conn)
	users := store.NewUserStore(conn)
	tasks := store.NewTaskStore(conn)
	history := store.NewHistoryStore(conn)
	connectors := store.NewConnectorStore(conn)
	params := store.NewParamStore(conn)

	registry, err := plugin.NewRegistry(version.Version)
	if err != nil {
		return err
	}

	sender := notify.NewSMTPSender(cfg.Smtp, log)
	notifier := notify.NewNotifier(sender, cfg.Language, log)

	settings, err := orchestrator.LoadSettings(params, cfg.Orchestrator)
	if err != nil {
		return err
	}

	reminderDays, err := loadReminderDays(params, cfg.Orchestrator)
	if err != nil {
		return err
	}

	email := plugin.EmailSettings{
		Host:     cfg.Smtp.Host,
		Port:     cfg.Smtp.Port,
		From:     cfg.Smtp.From,
		User:     cfg.Smtp.User,
		Password: cfg.Smtp.Password,
		Enabled:  cfg.Smtp.Enabled,
	}

	daemonCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registrar := scheduler.NewTimerRegistrar(daemonCtx, log)

	locale := cfg.Language.Default
	basePath := cfg.Requests.BasePath

	importer := batch.NewImportProcessor(requests, connectors, registry, locale, log)
	matcher := batch.NewRequestMatchingProcessor(requests, rules, users,
		matching.NewMatcher(log), notifier, basePath, log)
	runner := batch.NewTaskRunner(requests, tasks, history, registry, email,
		basePath, locale, log)
	exporter := batch.NewExportRequestProcessor(requests, connectors, tasks, users,
		history, registry, notifier, basePath, locale, log)
	reminder := batch.NewStandbyRequestsReminderProcessor(requests, users, notifier,
		reminderDays, log)

	imports := schedulers.NewImportJobsScheduler(registrar, connectors, importer, log)
	processing := schedulers.NewRequestsProcessingScheduler(registrar,
		settings.Frequency(), log, matcher, runner, exporter, reminder)

	orch := orchestrator.New(registrar, imports, processing, log)
	if err := orch.SetSettings(settings, false); err != nil {
		return err
	}
	if err := orch.ScheduleMonitoringByWorkingState(); err != nil {
		return err
	}

	// Operators edit the scheduler parameters through the system parameter
	// table; pick those edits up without a restart. Unchanged settings are a
	// no-op, a structural change reschedules monitoring.
	registrar.ScheduleFixedDelay(scheduler.TaskFunc{
		TaskName: "settings-refresh",
		Fn: func(context.Context) {
			if err := orch.UpdateSettingsFromStore(params, cfg.Orchestrator, true); err != nil {
				log.Warnw("Failed to apply stored scheduler settings", "error", err)
			}
		},
	}, settingsRefreshInterval)

	log.Infow("extractd started",
		"version", version.Version,
		"mode", settings.Mode,
		"state", orch.WorkingState())

	<-daemonCtx.Done()

	log.Infow("Shutting down")
	if err := orch.UnscheduleMonitoring(true); err != nil {
		log.Warnw("Failed to unschedule monitoring during shutdown", "error", err)
	}
	registrar.Shutdown()

	return nil
}

// loadReminderDays reads the standby reminder delay from the system
// parameters, falling back to the static configuration.
func loadReminderDays(params *store.ParamStore, cfg config.OrchestratorConfig) (int, error) {
	value, err := params.Get(store.ParamStandbyReminderDays)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return cfg.StandbyReminderDays, nil
		}
		return 0, err
	}

	days, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidSettings,
			"standby reminder delay %q is not a number", value)
	}
	return days, nil
}
