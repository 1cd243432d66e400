// Package mailer sends templated transactional email over SMTP.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"text/template"
)

// Config holds SMTP settings and the sender identity.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	FromAddress string
	FromName    string
}

// Mailer renders a body template per message and delivers it over SMTP.
type Mailer struct {
	config    *Config
	templates map[string]*template.Template
	logger    *slog.Logger
}

// New creates a Mailer. templates maps a template key to its body text;
// bodies are parsed once up front.
func New(config *Config, templates map[string]string, logger *slog.Logger) (*Mailer, error) {
	parsed := make(map[string]*template.Template, len(templates))
	for key, body := range templates {
		tpl, err := template.New(key).Parse(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse mail template %q: %w", key, err)
		}
		parsed[key] = tpl
	}

	return &Mailer{config: config, templates: parsed, logger: logger}, nil
}

// Send renders the named template with data and delivers the message. An
// unknown template key falls back to a plain subject-only body so a missing
// template never blocks a booking transition.
func (m *Mailer) Send(ctx context.Context, toAddress, toName, subject, templateKey string, data map[string]any) error {
	var body bytes.Buffer

	if tpl, ok := m.templates[templateKey]; ok {
		if err := tpl.Execute(&body, data); err != nil {
			return fmt.Errorf("failed to render mail template %q: %w", templateKey, err)
		}
	} else {
		m.logger.Warn("Unknown mail template, sending subject only",
			slog.String("template", templateKey),
		)
		body.WriteString(subject)
	}

	msg := bytes.Buffer{}
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", m.config.FromName, m.config.FromAddress)
	fmt.Fprintf(&msg, "To: %s <%s>\r\n", toName, toAddress)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.Write(body.Bytes())

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	var auth smtp.Auth
	if m.config.User != "" {
		auth = smtp.PlainAuth("", m.config.User, m.config.Password, m.config.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.config.FromAddress, []string{toAddress}, msg.Bytes())
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send mail: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	m.logger.Debug("Mail sent",
		slog.String("to", toAddress),
		slog.String("template", templateKey),
	)

	return nil
}

// DefaultTemplates are the built-in plain-text bodies keyed by template name.
var DefaultTemplates = map[string]string{
	"job-created": "Hi {{.user.Name}},\n\nWe have received your interpretation booking #{{.job.ID}} and are looking for an interpreter.\n",
	"job-accepted": "Hi {{.user.Name}},\n\nAn interpreter has accepted your booking #{{.job.ID}}. See the booking for details.\n",
	"job-accepted-translator": "Hi {{.user.Name}},\n\nYou have been assigned booking #{{.job.ID}}. See the booking for details.\n",
	"job-change-status-to-customer": "Hi {{.user.Name}},\n\nYour booking #{{.job.ID}} has been reopened and we are looking for an interpreter again.\n",
	"status-changed-from-pending-or-assigned-customer": "Hi {{.user.Name}},\n\nThe status of your booking #{{.job.ID}} has changed. See the booking for details.\n",
	"job-cancel-translator": "Hi {{.user.Name}},\n\nBooking #{{.job.ID}} has been cancelled and is no longer assigned to you.\n",
	"session-ended": "Hi {{.user.Name}},\n\nYour interpretation for booking #{{.job.ID}} is completed. Session length: {{.session_time}} (for your {{.for_text}}).\n",
	"job-changed-date": "Hi {{.user.Name}},\n\nBooking #{{.job.ID}} has been moved. Previous time: {{.old_time}}.\n",
	"job-changed-lang": "Hi {{.user.Name}},\n\nThe language for booking #{{.job.ID}} has changed. Previous language: {{.old_lang}}.\n",
	"job-changed-translator-customer": "Hi {{.user.Name}},\n\nBooking #{{.job.ID}} has been assigned a new interpreter.\n",
	"job-changed-translator-old-translator": "Hi {{.user.Name}},\n\nYou are no longer assigned to booking #{{.job.ID}}.\n",
	"job-changed-translator-new-translator": "Hi {{.user.Name}},\n\nYou have been assigned booking #{{.job.ID}}. See the booking for details.\n",
}
