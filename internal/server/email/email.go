// Package email sends transactional mail: password reset links and
// password-change notices.
package email

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/logging"
	"github.com/resend/resend-go/v3"
)

// Sender is what the user service depends on.
type Sender interface {
	SendPasswordReset(ctx context.Context, toEmail, token string, validFor time.Duration) error
	SendPasswordChanged(ctx context.Context, toEmail string) error
}

// emailsAPI is the subset of the Resend client used here.
type emailsAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendSender struct {
	emails emailsAPI
	from   string
	appURL string
}

// NewResendSender builds a Sender backed by the Resend API. from must belong
// to a domain verified in Resend; appURL is the base of reset links.
func NewResendSender(apiKey, from, appURL string) *ResendSender {
	return &ResendSender{
		emails: resend.NewClient(apiKey).Emails,
		from:   from,
		appURL: appURL,
	}
}

// ResetLink returns the link mailed for token.
func ResetLink(appURL, token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", appURL, url.QueryEscape(token))
}

func (s *ResendSender) SendPasswordReset(ctx context.Context, toEmail, token string, validFor time.Duration) error {
	link := html.EscapeString(ResetLink(s.appURL, token))

	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family:Arial,Helvetica,sans-serif;">
  <h2>Reset your password</h2>
  <p>We received a request to reset your trainlog password.</p>
  <p><a href="%s">Choose a new password</a></p>
  <p>This link expires in %s. If you did not ask for a reset you can ignore this email.</p>
  <p style="word-break:break-all;">%s</p>
</body>
</html>`, link, validFor, link)

	_, err := s.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Reset your trainlog password",
		Html:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

func (s *ResendSender) SendPasswordChanged(ctx context.Context, toEmail string) error {
	_, err := s.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Your trainlog password was changed",
		Text:    "Your password was just changed and all other sessions were signed out. If this was not you, reset your password now.",
	})
	if err != nil {
		return fmt.Errorf("failed to send password changed email: %w", err)
	}
	return nil
}

// NoopSender logs instead of sending. Used when no API key is configured.
type NoopSender struct {
	log    logging.Logger
	appURL string
}

func NewNoopSender(log logging.Logger, appURL string) *NoopSender {
	return &NoopSender{log: log, appURL: appURL}
}

func (s *NoopSender) SendPasswordReset(ctx context.Context, toEmail, _ string, validFor time.Duration) error {
	s.log.Info(ctx, "mail disabled, password reset not sent", "to", toEmail, "valid_for", validFor.String())
	return nil
}

func (s *NoopSender) SendPasswordChanged(ctx context.Context, toEmail string) error {
	s.log.Info(ctx, "mail disabled, password change notice not sent", "to", toEmail)
	return nil
}

// New picks the Resend sender when apiKey is set, the logging one otherwise.
func New(apiKey, from, appURL string, log logging.Logger) Sender {
	if apiKey == "" {
		return NewNoopSender(log, appURL)
	}
	return NewResendSender(apiKey, from, appURL)
}
