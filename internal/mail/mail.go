// Package mail sends transactional email through postmark or sendgrid.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Skotchmaster/ebee_shop/internal/config"
	"github.com/Skotchmaster/ebee_shop/internal/models"
	"github.com/Skotchmaster/ebee_shop/pkg/logging"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

func New(cfg config.Config) (Sender, error) {
	switch cfg.MailProvider {
	case "postmark":
		return NewPostmarkSender(cfg.PostmarkServerToken, cfg.MailFrom), nil
	case "sendgrid":
		return NewSendgridSender(cfg.SendgridAPIKey, cfg.MailFrom), nil
	case "log", "":
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.MailProvider)
	}
}

// LogSender writes the message to the request logger instead of sending it.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	logging.FromContext(ctx).Info("email_logged",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

func OrderConfirmation(to string, order *models.Order) Message {
	html := fmt.Sprintf(
		"<strong>Dear Customer,</strong><br><br>Thank you for your purchase! Your order (ID: %s) has been placed successfully.<br><br>Items: <strong>%d</strong><br>Total Amount: <strong>%s</strong><br>Payment Method: <strong>%s</strong><br><br>Thank you for shopping with us!",
		order.ID,
		len(order.Items),
		order.TotalPrice.StringFixed(2),
		order.PaymentMethod,
	)
	text := fmt.Sprintf(
		"Thank you for your purchase! Your order %s has been placed. Total: %s. Payment method: %s.",
		order.ID,
		order.TotalPrice.StringFixed(2),
		order.PaymentMethod,
	)
	return Message{
		To:      to,
		Subject: "Order Confirmation",
		HTML:    html,
		Text:    text,
	}
}
