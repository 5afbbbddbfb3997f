package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/internal/util"
)

func newReminderFixture(t *testing.T, reminderDays int) (*env, *StandbyRequestsReminderProcessor, *domain.Request) {
	t.Helper()

	e := newEnv(t)
	connectorID := e.seedConnector(t, "easysdi_v4")
	processID := e.seedProcess(t, "Extraction")
	e.seedOperator(t, processID, "op@example.org")
	e.seedAdmin(t, "admin@example.org")

	request := e.seedRequest(t, &domain.Request{
		ConnectorID: connectorID,
		ProcessID:   processID,
		OrderLabel:  "443530",
		Status:      domain.StatusStandby,
		TaskNum:     2,
	})

	processor := NewStandbyRequestsReminderProcessor(e.requests, e.users, e.notifier,
		reminderDays, nopLogger())
	return e, processor, request
}

func TestReminderDisabledNeverSends(t *testing.T) {
	e, processor, request := newReminderFixture(t, 0)

	processor.Run(context.Background())

	assert.Empty(t, e.sender.sent)
	assert.Nil(t, e.reload(t, request.ID).LastReminder)
}

func TestReminderFirstReminderSendsImmediately(t *testing.T) {
	e, processor, request := newReminderFixture(t, 2)
	now := time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)
	processor.now = func() time.Time { return now }

	processor.Run(context.Background())

	// Operators plus administrators
	assert.Len(t, e.sender.sent, 2)

	updated := e.reload(t, request.ID)
	require.NotNil(t, updated.LastReminder)
	assert.True(t, now.Equal(*updated.LastReminder))
}

func TestReminderRespectsThreshold(t *testing.T) {
	e, processor, request := newReminderFixture(t, 2)
	now := time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)
	processor.now = func() time.Time { return now }

	recent := now.Add(-24 * time.Hour)
	request.LastReminder = &recent
	require.NoError(t, e.requests.Update(request))

	processor.Run(context.Background())
	assert.Empty(t, e.sender.sent, "reminder younger than the delay stays quiet")

	overdue := now.Add(-49 * time.Hour)
	request.LastReminder = &overdue
	require.NoError(t, e.requests.Update(request))

	processor.Run(context.Background())
	assert.Len(t, e.sender.sent, 2)

	updated := e.reload(t, request.ID)
	require.NotNil(t, updated.LastReminder)
	assert.True(t, now.Equal(*updated.LastReminder))
}

func TestReminderSendFailureKeepsTimestamp(t *testing.T) {
	e, processor, request := newReminderFixture(t, 1)
	e.sender.failAll = true

	overdue := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)
	request.LastReminder = util.Ptr(overdue)
	require.NoError(t, e.requests.Update(request))

	processor.Run(context.Background())

	updated := e.reload(t, request.ID)
	require.NotNil(t, updated.LastReminder)
	assert.True(t, overdue.Equal(*updated.LastReminder),
		"failed delivery must not advance the reminder timestamp")
}
