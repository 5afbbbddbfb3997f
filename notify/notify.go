// Package notify delivers per-recipient e-mail notifications for request
// lifecycle events.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/geonexus/extractd/config"
	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/errors"
)

// Message is one outbound notification addressed to a single recipient.
type Message struct {
	To      string
	Locale  string
	Subject string
	Body    string
}

// Sender delivers a single message. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier fans out lifecycle notifications to sets of users. Delivery is
// fire-and-forget from the caller's perspective: per-recipient failures are
// logged and skipped, and a batch counts as delivered when at least one
// recipient received the message.
type Notifier struct {
	sender        Sender
	defaultLocale string
	available     map[string]bool
	logger        *zap.SugaredLogger
}

// NewNotifier creates a notifier resolving recipient locales against the
// configured language set.
func NewNotifier(sender Sender, language config.LanguageConfig, logger *zap.SugaredLogger) *Notifier {
	available := make(map[string]bool, len(language.Available))
	for _, locale := range language.Available {
		available[locale] = true
	}

	return &Notifier{
		sender:        sender,
		defaultLocale: language.Default,
		available:     available,
		logger:        logger,
	}
}

// NotifyUnmatchedRequest tells the administrators that an imported request
// matched no rule.
func (n *Notifier) NotifyUnmatchedRequest(ctx context.Context, request *domain.Request,
	recipients []*domain.User) error {
	return n.fanOut(ctx, "unmatched request", recipients, func(locale string) (string, string) {
		subject := fmt.Sprintf("[Extract] Request %s matched no rule", request.OrderLabel)
		body := fmt.Sprintf(
			"The imported request %s (client %s) could not be attached to any process.\n"+
				"Review the matching rules of its connector.",
			request.OrderLabel, request.Client)
		return subject, body
	})
}

// NotifyExportFailure tells the operators and administrators that pushing a
// finished request back to its source system failed.
func (n *Notifier) NotifyExportFailure(ctx context.Context, request *domain.Request,
	errorMessage string, recipients []*domain.User) error {
	return n.fanOut(ctx, "export failure", recipients, func(locale string) (string, string) {
		subject := fmt.Sprintf("[Extract] Export of request %s failed", request.OrderLabel)
		body := fmt.Sprintf(
			"The result of request %s (client %s) could not be exported.\n\n%s\n\n"+
				"The export will be retried automatically.",
			request.OrderLabel, request.Client, errorMessage)
		return subject, body
	})
}

// NotifyStandbyReminder reminds the operators and administrators that a
// request is still waiting for manual validation.
func (n *Notifier) NotifyStandbyReminder(ctx context.Context, request *domain.Request,
	recipients []*domain.User) error {
	return n.fanOut(ctx, "standby reminder", recipients, func(locale string) (string, string) {
		subject := fmt.Sprintf("[Extract] Request %s awaits validation", request.OrderLabel)
		body := fmt.Sprintf(
			"The request %s (client %s) is still in standby and waits for an operator decision.",
			request.OrderLabel, request.Client)
		return subject, body
	})
}

// fanOut sends one message per unique recipient address. Recipients without
// an address are skipped. The batch fails only when no recipient at all
// could be reached.
func (n *Notifier) fanOut(ctx context.Context, kind string, recipients []*domain.User,
	render func(locale string) (subject, body string)) error {
	seen := make(map[string]bool)
	attempted := 0
	delivered := 0

	for _, user := range recipients {
		address := strings.ToLower(strings.TrimSpace(user.Email))
		if address == "" || seen[address] {
			continue
		}
		seen[address] = true
		attempted++

		locale := n.resolveLocale(user.Locale)
		subject, body := render(locale)
		msg := Message{To: user.Email, Locale: locale, Subject: subject, Body: body}

		if err := n.sender.Send(ctx, msg); err != nil {
			n.logger.Warnw("Notification delivery failed for recipient",
				"kind", kind,
				"recipient", user.Email,
				"error", err)
			continue
		}
		delivered++
	}

	if attempted == 0 {
		n.logger.Warnw("No recipients for notification", "kind", kind)
		return nil
	}
	if delivered == 0 {
		return errors.Newf("failed to deliver %s notification to any of %d recipients",
			kind, attempted)
	}
	if delivered < attempted {
		n.logger.Warnw("Notification delivered partially",
			"kind", kind,
			"delivered", delivered,
			"attempted", attempted)
	}
	return nil
}

func (n *Notifier) resolveLocale(locale string) string {
	if locale != "" && n.available[locale] {
		return locale
	}
	return n.defaultLocale
}

// MergeRecipients joins recipient lists, preserving order of first
// appearance and dropping duplicate addresses.
func MergeRecipients(lists ...[]*domain.User) []*domain.User {
	seen := make(map[string]bool)
	var merged []*domain.User
	for _, list := range lists {
		for _, user := range list {
			address := strings.ToLower(strings.TrimSpace(user.Email))
			if address == "" || seen[address] {
				continue
			}
			seen[address] = true
			merged = append(merged, user)
		}
	}
	return merged
}
