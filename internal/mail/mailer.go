// Package mail delivers back-office notification email over SMTP.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Config carries SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the envelope sender for all outgoing mail.
	From string
	// NotifyTo receives form-submission notifications.
	NotifyTo string
}

// Mailer sends notification email. A nil Mailer is a no-op sender, so
// callers do not need to branch on whether SMTP is configured.
type Mailer struct {
	client *gomail.Client
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Mailer. Port 465 uses implicit TLS; other ports
// negotiate STARTTLS when the server offers it.
func New(cfg Config, logger *slog.Logger) (*Mailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Port == 465 {
		opts = append(opts, gomail.WithSSLPort(false))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password))
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Mailer{client: client, cfg: cfg, logger: logger, now: time.Now}, nil
}

// Submission is a public form submission rendered into a notification.
type Submission struct {
	Name     string
	Email    string
	Phone    string
	Company  string
	Country  string
	Quantity string
	Subject  string
	Product  string
	Message  string
}

// SendContactNotification mails the contact-form notification to the
// configured recipient, with reply-to set to the submitter.
func (m *Mailer) SendContactNotification(ctx context.Context, sub Submission) error {
	if m == nil {
		return nil
	}
	subject := fmt.Sprintf("New Contact Form Submission from %s", sub.Name)
	return m.send(ctx, sub, subject, contactHTMLTmpl, contactTextTmpl)
}

// SendQuoteNotification mails the quote-request notification.
func (m *Mailer) SendQuoteNotification(ctx context.Context, sub Submission) error {
	if m == nil {
		return nil
	}
	subject := fmt.Sprintf("New Quote Request from %s", sub.Name)
	return m.send(ctx, sub, subject, quoteHTMLTmpl, quoteTextTmpl)
}

func (m *Mailer) send(ctx context.Context, sub Submission, subject string, html htmlTemplate, text textTemplate) error {
	htmlBody, textBody, err := renderBodies(sub, m.now(), html, text)
	if err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(sub.Name, m.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(m.cfg.NotifyTo); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	if sub.Email != "" {
		if err := msg.ReplyTo(sub.Email); err != nil {
			return fmt.Errorf("mail reply-to: %w", err)
		}
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, textBody)
	msg.AddAlternativeString(gomail.TypeTextHTML, htmlBody)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		// Keep the submission visible in the logs so a flaky SMTP relay
		// never loses the lead. The row is already persisted.
		m.logger.Error("send notification email",
			slog.String("subject", subject),
			slog.String("submitter", sub.Email),
			slog.Any("error", err))
		return fmt.Errorf("send email: %w", err)
	}
	m.logger.Info("notification email sent", slog.String("subject", subject))
	return nil
}
