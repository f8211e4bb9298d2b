package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	mail "github.com/wneessen/go-mail"

	"automax/internal/config"
)

var ErrNoRecipients = errors.New("no recipients")

type Mailer interface {
	SendMail(ctx context.Context, to []string, subject, body string) error
}

// New returns the console mailer in debug mode or when no SMTP user is
// configured, and the SMTP mailer otherwise.
func New(cfg config.EmailConfig, debug bool) Mailer {
	if debug || cfg.User == "" {
		return NewConsoleMailer(logrus.StandardLogger())
	}
	return NewSMTPMailer(cfg)
}

// MailAdmins sends a message to every configured admin address.
func MailAdmins(ctx context.Context, m Mailer, admins []string, subject, body string) error {
	if len(admins) == 0 {
		return nil
	}
	return m.SendMail(ctx, admins, "[AutoMax] "+subject, body)
}

type ConsoleMailer struct {
	log logrus.FieldLogger
}

func NewConsoleMailer(log logrus.FieldLogger) *ConsoleMailer {
	return &ConsoleMailer{log: log}
}

func (m *ConsoleMailer) SendMail(_ context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	m.log.WithFields(logrus.Fields{
		"to":      strings.Join(to, ","),
		"subject": subject,
	}).Info(body)
	return nil
}

type SMTPMailer struct {
	host     string
	port     int
	useTLS   bool
	user     string
	password string
	from     string
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		useTLS:   cfg.UseTLS,
		user:     cfg.User,
		password: cfg.Password,
		from:     cfg.DefaultFrom,
	}
}

func (m *SMTPMailer) SendMail(ctx context.Context, to []string, subject, body string) error {
	msg, err := m.message(to, subject, body)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", strings.Join(to, ","), err)
	}
	return nil
}

func (m *SMTPMailer) message(to []string, subject, body string) (*mail.Msg, error) {
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", m.from, err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithPort(m.port)}
	if m.useTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if m.user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.user),
			mail.WithPassword(m.password),
		)
	}
	return opts
}
