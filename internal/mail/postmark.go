package mail

import (
	"context"
	"fmt"

	"github.com/keighl/postmark"
)

type PostmarkSender struct {
	client *postmark.Client
	from   string
}

func NewPostmarkSender(serverToken, from string) *PostmarkSender {
	return &PostmarkSender{
		client: postmark.NewClient(serverToken, ""),
		from:   from,
	}
}

// Send returns when postmark answers or ctx is done, whichever comes first.
func (s *PostmarkSender) Send(ctx context.Context, msg Message) error {
	done := make(chan error, 1)
	go func() {
		_, err := s.client.SendEmail(postmark.Email{
			From:     s.from,
			To:       msg.To,
			Subject:  msg.Subject,
			HtmlBody: msg.HTML,
			TextBody: msg.Text,
		})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("postmark: send to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("postmark: send to %s: %w", msg.To, ctx.Err())
	}
}
