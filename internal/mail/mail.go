// Package mail delivers plain-text notification mail to users.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	gomail "github.com/wneessen/go-mail"
)

// ErrNoRecipients is returned when Send is called without any recipient.
var ErrNoRecipients = errors.New("mail: no recipients")

// Sender delivers a message. An empty from means the sender's default address.
type Sender interface {
	Send(ctx context.Context, from string, to []string, subject, body string) error
}

// SMTPSender sends mail through an SMTP relay. PLAIN auth is used when Username is set.
type SMTPSender struct {
	Host        string
	Port        int
	Username    string
	Password    string
	DefaultFrom string

	// deliver dials the relay and sends msg; replaced in tests.
	deliver func(ctx context.Context, msg *gomail.Msg) error
}

// NewSMTPSender returns a sender for host:port.
func NewSMTPSender(host string, port int, username, password, defaultFrom string) *SMTPSender {
	s := &SMTPSender{
		Host:        host,
		Port:        port,
		Username:    username,
		Password:    password,
		DefaultFrom: defaultFrom,
	}
	s.deliver = s.dialAndSend
	return s
}

func (s *SMTPSender) Send(ctx context.Context, from string, to []string, subject, body string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if from == "" {
		from = s.DefaultFrom
	}
	msg, err := newMessage(from, to, subject, body)
	if err != nil {
		return err
	}
	if err := s.deliver(ctx, msg); err != nil {
		return fmt.Errorf("mail: send via %s: %w", s.addr(), err)
	}
	return nil
}

func (s *SMTPSender) addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// clientOptions configures the relay connection. STARTTLS is used when the relay offers it.
func (s *SMTPSender) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(s.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if s.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.Username),
			gomail.WithPassword(s.Password),
		)
	}
	return opts
}

func (s *SMTPSender) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	client, err := gomail.NewClient(s.Host, s.clientOptions()...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// newMessage builds a plain-text UTF-8 message. Line breaks in the subject are folded to spaces.
func newMessage(from string, to []string, subject, body string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("mail: from %q: %w", from, err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("mail: to: %w", err)
	}
	msg.Subject(strings.NewReplacer("\r", "", "\n", " ").Replace(subject))
	msg.SetDate()
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return msg, nil
}

// LogSender logs messages instead of sending them. Used when no SMTP relay is configured.
type LogSender struct {
	Log         logrus.FieldLogger
	DefaultFrom string
}

func (s *LogSender) Send(ctx context.Context, from string, to []string, subject, body string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	if from == "" {
		from = s.DefaultFrom
	}
	s.Log.WithFields(logrus.Fields{
		"from":    from,
		"to":      strings.Join(to, ","),
		"subject": subject,
	}).Info("mail: not sent, no SMTP relay configured")
	return nil
}
