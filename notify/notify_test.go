package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geonexus/extractd/config"
	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/errors"
)

type recordingSender struct {
	sent    []Message
	failFor map[string]bool
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.failFor[msg.To] {
		return errors.Newf("mailbox %s unavailable", msg.To)
	}
	s.sent = append(s.sent, msg)
	return nil
}

func testLanguage() config.LanguageConfig {
	return config.LanguageConfig{Default: "en", Available: []string{"en", "fr"}}
}

func testRequest() *domain.Request {
	return &domain.Request{ID: 1, OrderLabel: "443530", Client: "Crown Ltd"}
}

func TestNotifierFanOutResolvesLocales(t *testing.T) {
	sender := &recordingSender{}
	notifier := NewNotifier(sender, testLanguage(), zap.NewNop().Sugar())

	recipients := []*domain.User{
		{Email: "admin@example.org", Locale: "fr"},
		{Email: "ops@example.org", Locale: ""},
		{Email: "exotic@example.org", Locale: "de"},
	}

	err := notifier.NotifyUnmatchedRequest(context.Background(), testRequest(), recipients)
	require.NoError(t, err)
	require.Len(t, sender.sent, 3)

	assert.Equal(t, "fr", sender.sent[0].Locale)
	assert.Equal(t, "en", sender.sent[1].Locale, "unset locale falls back to default")
	assert.Equal(t, "en", sender.sent[2].Locale, "unavailable locale falls back to default")
	assert.Contains(t, sender.sent[0].Subject, "443530")
}

func TestNotifierDeduplicatesRecipients(t *testing.T) {
	sender := &recordingSender{}
	notifier := NewNotifier(sender, testLanguage(), zap.NewNop().Sugar())

	recipients := []*domain.User{
		{Email: "shared@example.org"},
		{Email: "Shared@Example.org"},
		{Email: ""},
		{Email: "other@example.org"},
	}

	err := notifier.NotifyStandbyReminder(context.Background(), testRequest(), recipients)
	require.NoError(t, err)
	assert.Len(t, sender.sent, 2)
}

func TestNotifierPartialFailureStillSucceeds(t *testing.T) {
	sender := &recordingSender{failFor: map[string]bool{"broken@example.org": true}}
	notifier := NewNotifier(sender, testLanguage(), zap.NewNop().Sugar())

	recipients := []*domain.User{
		{Email: "broken@example.org"},
		{Email: "working@example.org"},
	}

	err := notifier.NotifyExportFailure(context.Background(), testRequest(),
		"export failed - connection refused", recipients)
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "working@example.org", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, "connection refused")
}

func TestNotifierTotalFailure(t *testing.T) {
	sender := &recordingSender{failFor: map[string]bool{
		"a@example.org": true,
		"b@example.org": true,
	}}
	notifier := NewNotifier(sender, testLanguage(), zap.NewNop().Sugar())

	recipients := []*domain.User{
		{Email: "a@example.org"},
		{Email: "b@example.org"},
	}

	err := notifier.NotifyUnmatchedRequest(context.Background(), testRequest(), recipients)
	assert.Error(t, err)
}

func TestNotifierNoRecipients(t *testing.T) {
	sender := &recordingSender{}
	notifier := NewNotifier(sender, testLanguage(), zap.NewNop().Sugar())

	assert.NoError(t, notifier.NotifyUnmatchedRequest(context.Background(), testRequest(), nil))
	assert.Empty(t, sender.sent)
}

func TestMergeRecipients(t *testing.T) {
	operators := []*domain.User{
		{Login: "op1", Email: "op1@example.org"},
		{Login: "both", Email: "both@example.org"},
	}
	admins := []*domain.User{
		{Login: "both-again", Email: "Both@Example.org"},
		{Login: "admin", Email: "admin@example.org"},
	}

	merged := MergeRecipients(operators, admins)
	require.Len(t, merged, 3)
	assert.Equal(t, "op1", merged[0].Login)
	assert.Equal(t, "both", merged[1].Login)
	assert.Equal(t, "admin", merged[2].Login)
}

func TestSMTPSenderDisabledDropsMessage(t *testing.T) {
	sender := NewSMTPSender(config.SmtpConfig{Enabled: false}, zap.NewNop().Sugar())

	err := sender.Send(context.Background(), Message{To: "x@example.org"})
	assert.NoError(t, err)
}
