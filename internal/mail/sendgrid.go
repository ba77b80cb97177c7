package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendgridSender struct {
	apiKey  string
	from    string
	baseURL string
}

func NewSendgridSender(apiKey, from string) *SendgridSender {
	return &SendgridSender{apiKey: apiKey, from: from}
}

func (s *SendgridSender) Send(ctx context.Context, msg Message) error {
	client := sendgrid.NewSendClient(s.apiKey)
	if s.baseURL != "" {
		client.BaseURL = s.baseURL
	}

	email := sgmail.NewSingleEmail(
		sgmail.NewEmail("", s.from),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)

	res, err := client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid: send to %s: %w", msg.To, err)
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: send to %s: status %d: %s", msg.To, res.StatusCode, res.Body)
	}
	return nil
}
