package mail

import (
	"context"
	"errors"
	netmail "net/mail"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEncode(t *testing.T) {
	raw := string(Encode(netmail.Address{Name: "Acme", Address: "noreply@acme.test"}, Message{
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Hello",
		Body:    "Body text",
	}))
	assert.Contains(t, raw, "From: \"Acme\" <noreply@acme.test>\r\n")
	assert.Contains(t, raw, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, raw, "Subject: Hello\r\n")
	assert.Contains(t, raw, "\r\n\r\nBody text")
}

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer("smtp.acme.test:587", netmail.Address{Address: "noreply@acme.test"})
	var gotAddr, gotFrom string
	var gotTo []string
	m.send = func(addr string, _ smtp.Auth, from string, to []string, _ []byte) error {
		gotAddr, gotFrom, gotTo = addr, from, to
		return nil
	}

	require.NoError(t, m.Send(context.Background(), Message{To: []string{"a@example.com"}}))
	assert.Equal(t, "smtp.acme.test:587", gotAddr)
	assert.Equal(t, "noreply@acme.test", gotFrom)
	assert.Equal(t, []string{"a@example.com"}, gotTo)

	assert.ErrorIs(t, m.Send(context.Background(), Message{}), ErrNoRecipients)

	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	err := m.Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorContains(t, err, "refused")
}

func TestLogMailer_Send(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMailer(netmail.Address{Address: "noreply@acme.test"}, zap.New(core))

	require.NoError(t, m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hi"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Hi", logs.All()[0].ContextMap()["subject"])
}

func TestManager(t *testing.T) {
	rt := config.NewRuntime(map[string]any{
		"mail": map[string]any{
			"host": "",
			"port": 25,
			"from": map[string]any{"address": "noreply@example.com", "name": "Example"},
		},
	})
	m := NewManager(rt, nil)

	first := m.Mailer()
	assert.IsType(t, &LogMailer{}, first)
	assert.Same(t, first, m.Mailer())

	rt.Set("mail.host", "smtp.acme.test")
	rt.Set("mail.port", 2525)
	rt.Set("mail.from.address", "noreply@acme.test")
	rt.Invalidate("mail")

	smtpMailer, ok := m.Mailer().(*SMTPMailer)
	require.True(t, ok)
	assert.Equal(t, "smtp.acme.test:2525", smtpMailer.Addr())
	assert.Equal(t, "noreply@acme.test", smtpMailer.From().Address)
	assert.Equal(t, "Example", smtpMailer.From().Name)

	rt.Reset()
	assert.IsType(t, &LogMailer{}, m.Mailer())
}
