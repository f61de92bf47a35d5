package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSender delivers short messages through Twilio. Destination numbers are
// expected in E.164 format.
type SMSSender struct {
	AccountSID string
	AuthToken  string
	FromNumber string

	client *twilio.RestClient
}

func NewSMSSender(accountSID, authToken, fromNumber string) *SMSSender {
	return &SMSSender{
		AccountSID: accountSID,
		AuthToken:  authToken,
		FromNumber: fromNumber,
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username:   accountSID,
			Password:   authToken,
			AccountSid: accountSID,
		}),
	}
}

func (s *SMSSender) Send(ctx context.Context, toNumber, body string) error {
	if s.AccountSID == "" || s.AuthToken == "" || s.FromNumber == "" {
		return errors.New("notify: twilio is not configured")
	}
	if !strings.HasPrefix(toNumber, "+") {
		return fmt.Errorf("notify: destination %q is not E.164", toNumber)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(s.FromNumber)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("notify: twilio send: %w", err)
	}
	return nil
}
