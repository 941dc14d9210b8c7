package jobs

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

// SMTPMailer delivers notifications through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
}

// NewSMTPMailer configures the relay. ssl selects implicit TLS (port 465 style).
func NewSMTPMailer(host string, port int, user, password string, ssl bool) *SMTPMailer {
	d := gomail.NewDialer(host, port, user, password)
	d.SSL = ssl
	return &SMTPMailer{dialer: d}
}

// Send renders a plain text message and hands it to the relay.
func (m *SMTPMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(buildMessage(from, to, subject, body)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}
