package batch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/notify"
	"github.com/geonexus/extractd/store"
)

// StandbyRequestsReminderProcessor periodically re-notifies operators about
// requests stuck in standby beyond the configured delay.
type StandbyRequestsReminderProcessor struct {
	requests *store.RequestStore
	users    *store.UserStore
	notifier *notify.Notifier
	// reminderDays is the delay in days between two reminders; zero
	// disables reminders entirely
	reminderDays int
	logger       *zap.SugaredLogger

	// now is replaceable in tests
	now func() time.Time
}

// NewStandbyRequestsReminderProcessor creates the reminder processor.
func NewStandbyRequestsReminderProcessor(requests *store.RequestStore,
	users *store.UserStore, notifier *notify.Notifier, reminderDays int,
	logger *zap.SugaredLogger) *StandbyRequestsReminderProcessor {
	return &StandbyRequestsReminderProcessor{
		requests:     requests,
		users:        users,
		notifier:     notifier,
		reminderDays: reminderDays,
		logger:       logger,
		now:          time.Now,
	}
}

// Run reminds about every overdue standby request once.
func (p *StandbyRequestsReminderProcessor) Run(ctx context.Context) {
	if p.reminderDays <= 0 {
		return
	}

	standby, err := p.requests.ByStatus(domain.StatusStandby)
	if err != nil {
		logListFailure(p.logger, "Failed to list standby requests", err)
		return
	}

	for _, request := range standby {
		if ctx.Err() != nil {
			return
		}
		p.Process(ctx, request)
	}
}

// Process sends one reminder when the request's last reminder is unset or
// older than the configured delay. The timestamp only advances on a
// successful send, so a failed delivery is retried on the next pass.
func (p *StandbyRequestsReminderProcessor) Process(ctx context.Context, request *domain.Request) {
	if p.reminderDays <= 0 {
		return
	}

	now := p.now()
	threshold := now.Add(-time.Duration(p.reminderDays) * 24 * time.Hour)
	if request.LastReminder != nil && request.LastReminder.After(threshold) {
		return
	}

	recipients := p.reminderRecipients(request)
	if err := p.notifier.NotifyStandbyReminder(ctx, request, recipients); err != nil {
		p.logger.Warnw("Standby reminder delivery failed, retrying on next pass",
			"request_id", request.ID, "error", err)
		return
	}

	request.LastReminder = &now
	if err := p.requests.Update(request); err != nil {
		p.logger.Errorw("Failed to persist reminder timestamp",
			"request_id", request.ID, "error", err)
		return
	}

	p.logger.Infow("Standby reminder sent", "request_id", request.ID)
}

func (p *StandbyRequestsReminderProcessor) reminderRecipients(request *domain.Request) []*domain.User {
	operators, err := p.users.ProcessOperators(request.ProcessID)
	if err != nil {
		p.logger.Errorw("Failed to load process operators", "error", err)
	}
	admins, err := p.users.ActiveAdministrators()
	if err != nil {
		p.logger.Errorw("Failed to load administrators", "error", err)
	}
	return notify.MergeRecipients(operators, admins)
}
