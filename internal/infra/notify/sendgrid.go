package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender delivers transactional mail through SendGrid.
type EmailSender struct {
	APIKey    string
	FromEmail string
	FromName  string
}

func (s EmailSender) Send(ctx context.Context, toEmail, toName, subject, plainText, htmlContent string) error {
	if s.APIKey == "" || s.FromEmail == "" {
		return errors.New("notify: sendgrid is not configured")
	}
	from := mail.NewEmail(s.fromName(), s.FromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)

	client := sendgrid.NewSendClient(s.APIKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("notify: sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

func (s EmailSender) fromName() string {
	if s.FromName != "" {
		return s.FromName
	}
	return "DriveShare"
}
