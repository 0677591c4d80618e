package mail

import (
	"net"
	netmail "net/mail"
	"strconv"
	"sync"

	"github.com/tenancy/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Manager hands out the mailer for the unit's mail.* configuration
type Manager struct {
	rt     *config.Runtime
	logger *zap.Logger

	mu     sync.Mutex
	mailer Mailer
}

// NewManager binds a manager to rt
func NewManager(rt *config.Runtime, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{rt: rt, logger: logger}
	rt.Subscribe("mail", m.Invalidate)
	return m
}

// Mailer returns the mailer, building it on first use
func (m *Manager) Mailer() Mailer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mailer != nil {
		return m.mailer
	}

	from := netmail.Address{
		Name:    m.rt.GetString("mail.from.name", ""),
		Address: m.rt.GetString("mail.from.address", ""),
	}
	host := m.rt.GetString("mail.host", "")
	if host == "" {
		m.mailer = NewLogMailer(from, m.logger)
		return m.mailer
	}
	addr := net.JoinHostPort(host, strconv.Itoa(m.rt.GetInt("mail.port", 25)))
	m.mailer = NewSMTPMailer(addr, from)
	return m.mailer
}

// Invalidate drops the cached mailer
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.mailer = nil
	m.mu.Unlock()
}
