package notification

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rl1809/allocation/internal/port"
)

var ErrMailUnavailable = errors.New("mail server unavailable")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers mail through a plain SMTP relay such as MailHog.
// Repeated failures open the breaker so handlers fail fast.
type SMTPSender struct {
	addr    string
	send    sendFunc
	breaker *gobreaker.CircuitBreaker
}

func NewSMTPSender(host string, port int) *SMTPSender {
	return newSMTPSender(fmt.Sprintf("%s:%d", host, port), smtp.SendMail)
}

func newSMTPSender(addr string, send sendFunc) *SMTPSender {
	return &SMTPSender{
		addr: addr,
		send: send,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "smtp",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg port.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.send(s.addr, nil, msg.From, []string{msg.To}, buildMessage(msg))
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func buildMessage(msg port.EmailMessage) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Text)
	b.WriteString("\r\n")
	return []byte(b.String())
}
