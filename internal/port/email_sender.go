package port

import "context"

type EmailMessage struct {
	From    string
	To      string
	Subject string
	Text    string
}

type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}
