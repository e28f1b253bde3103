// Package mail delivers the email-address confirmation message. Delivery is
// fire-and-forget: the account service hands over the user and moves on;
// transport failures are logged here and never surface to the caller.
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/winds-n/member-api/internal/logging"
	"github.com/winds-n/member-api/internal/server/accounts"
	"github.com/winds-n/member-api/internal/server/config"
)

// SMTPSender sends confirmation mail through a plain SMTP account.
type SMTPSender struct {
	addr     string
	username string
	password string
	from     string
	baseURL  string
	validity time.Duration
	logger   logging.Logger
}

func NewSMTPSender(cfg *config.Config, logger logging.Logger) *SMTPSender {
	return &SMTPSender{
		addr:     cfg.SMTPAddr,
		username: cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.MailFrom,
		baseURL:  cfg.PublicBaseURL,
		validity: cfg.EmailValidityDuration,
		logger:   logger.With("module", "mail"),
	}
}

// SendConfirmation queues the confirmation mail for the user's pending email
// address. Returns immediately; the send happens on its own goroutine.
func (s *SMTPSender) SendConfirmation(user *accounts.User) {
	go s.send(user)
}

func (s *SMTPSender) send(user *accounts.User) {
	ctx := context.Background()

	if user.Email == nil || *user.Email == "" || user.EmailValidKey == nil {
		s.logger.Warn(ctx, "confirmation mail skipped: no pending email", "userid", user.UserID)
		return
	}

	host, _, err := net.SplitHostPort(s.addr)
	if err != nil {
		s.logger.Error(ctx, "invalid smtp address", "addr", s.addr, "err", err)
		return
	}

	link := s.baseURL + "/valid/" + *user.EmailValidKey
	msg := confirmationMessage(s.from, *user.Email, user.Name, link, s.validity)

	auth := smtp.PlainAuth("", s.username, s.password, host)
	if err := smtp.SendMail(s.addr, auth, s.from, []string{*user.Email}, msg); err != nil {
		s.logger.Error(ctx, "confirmation mail failed", "userid", user.UserID, "err", err)
		return
	}

	s.logger.Info(ctx, "confirmation mail sent", "userid", user.UserID)
}

func confirmationMessage(from, to, name, link string, validity time.Duration) []byte {
	body := fmt.Sprintf(
		"Dear %s,\r\n"+
			"\r\n"+
			"Thank you for using the member service.\r\n"+
			"Please confirm your registered email address by visiting the URL below.\r\n"+
			"\r\n"+
			"%s\r\n"+
			"\r\n"+
			"The URL is valid for %d hours after registration.\r\n"+
			"If it has expired, please request a new confirmation from the settings page.\r\n"+
			"If you did not request this, you can safely ignore this message.\r\n",
		name, link, int(validity.Hours()))

	msg := "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: Please confirm your email address\r\n" +
		"\r\n" +
		body

	return []byte(msg)
}
