package main

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// EmailSettings hold the SMTP relay shared by every email channel. The
// per-alarm part (who receives the mail) lives on the alarm definition.
type EmailSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailChannel delivers notifications over SMTP.
type EmailChannel struct {
	settings   EmailSettings
	recipients []string
}

func NewEmailChannel(settings EmailSettings, recipients []string) *EmailChannel {
	return &EmailChannel{settings: settings, recipients: recipients}
}

func (e *EmailChannel) Kind() string { return "email" }

func (e *EmailChannel) Configured() bool {
	return e.settings.Host != "" && e.settings.From != "" && len(e.recipients) > 0
}

func (e *EmailChannel) Send(ctx context.Context, payload NotificationPayload) error {
	message := mail.NewMsg()
	if err := message.From(e.settings.From); err != nil {
		return fmt.Errorf("setting sender address: %w", err)
	}
	if err := message.To(e.recipients...); err != nil {
		return fmt.Errorf("setting recipient addresses: %w", err)
	}

	subject := payload.Title
	if payload.Priority == PriorityUrgent {
		subject = "[URGENT] " + subject
		message.SetImportance(mail.ImportanceHigh)
	}
	message.Subject(subject)

	body := payload.Message
	if details := renderMetadataLines(payload.Metadata); details != "" {
		body += "\n\n" + details
	}
	message.SetBodyString(mail.TypeTextPlain, body)

	options := []mail.Option{
		mail.WithPort(e.settings.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if e.settings.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.settings.Username),
			mail.WithPassword(e.settings.Password),
		)
	}

	client, err := mail.NewClient(e.settings.Host, options...)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("%w: %s", ErrChannelDropped, err.Error())
	}
	return nil
}
