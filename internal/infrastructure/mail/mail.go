// Package mail sends outbound mail with the sender identity of the current
// tenant.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// ErrNoRecipients is returned when a message has nowhere to go
var ErrNoRecipients = errors.New("mail: no recipients")

// Message is an outbound plain text message
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	From() netmail.Address
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers through an SMTP relay
type SMTPMailer struct {
	addr string
	from netmail.Address
	send sendFunc
}

// NewSMTPMailer creates a mailer for the relay at addr
func NewSMTPMailer(addr string, from netmail.Address) *SMTPMailer {
	return &SMTPMailer{addr: addr, from: from, send: smtp.SendMail}
}

// Addr returns the relay address
func (m *SMTPMailer) Addr() string {
	return m.addr
}

// From implements Mailer
func (m *SMTPMailer) From() netmail.Address {
	return m.from
}

// Send implements Mailer
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(m.addr, nil, m.from.Address, msg.To, Encode(m.from, msg)); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", m.addr, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of delivering them. Used
// when no relay host is configured.
type LogMailer struct {
	from   netmail.Address
	logger *zap.Logger
}

// NewLogMailer creates a log-only mailer
func NewLogMailer(from netmail.Address, logger *zap.Logger) *LogMailer {
	return &LogMailer{from: from, logger: logger}
}

// From implements Mailer
func (m *LogMailer) From() netmail.Address {
	return m.from
}

// Send implements Mailer
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	m.logger.Info("Mail not delivered, no relay configured",
		zap.String("from", m.from.String()),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// Encode renders msg as an RFC 5322 message
func Encode(from netmail.Address, msg Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)
	return buf.Bytes()
}
