package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/geonexus/extractd/config"
	"github.com/geonexus/extractd/errors"
)

// SMTPSender delivers messages through a plain SMTP relay.
type SMTPSender struct {
	cfg    config.SmtpConfig
	logger *zap.SugaredLogger

	// send is replaceable in tests
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates a sender for the configured relay.
func NewSMTPSender(cfg config.SmtpConfig, logger *zap.SugaredLogger) *SMTPSender {
	return &SMTPSender{cfg: cfg, logger: logger, send: smtp.SendMail}
}

// Send delivers one message. When notifications are disabled in the
// configuration the message is dropped and logged instead.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if !s.cfg.Enabled {
		s.logger.Debugw("Mail notifications disabled, dropping message",
			"to", msg.To, "subject", msg.Subject)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "send cancelled")
	}

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	payload := buildPayload(s.cfg.From, msg)

	if err := s.send(addr, auth, s.cfg.From, []string{msg.To}, payload); err != nil {
		return errors.Wrapf(err, "failed to send mail to %s", msg.To)
	}
	return nil
}

func buildPayload(from string, msg Message) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + msg.To + "\r\n")
	sb.WriteString("Subject: " + msg.Subject + "\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("Content-Language: " + msg.Locale + "\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(msg.Body)
	return []byte(sb.String())
}
