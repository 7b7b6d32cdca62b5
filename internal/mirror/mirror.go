// Package mirror republishes scroll progress to an MQTT broker, so devices
// outside the page can follow the story.
package mirror

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ivlev/scrollstory/internal/channel"
	"github.com/ivlev/scrollstory/internal/events"
)

const DefaultTimeout = 5 * time.Second

// Publisher is the part of mqtt.Client the mirror needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type Config struct {
	Topic    string
	QoS      byte
	Retained bool
	// Timeout bounds the wait for a broker acknowledgement.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Mirror forwards events.ScrollUpdate to a broker topic.
type Mirror struct {
	pub    Publisher
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	unsubscribe func()
	detached    bool
	pending     sync.WaitGroup

	sent   atomic.Uint64
	failed atomic.Uint64
}

func New(pub Publisher, cfg Config) *Mirror {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{pub: pub, cfg: cfg, logger: logger}
}

// Attach starts forwarding progress published on bus.
func (m *Mirror) Attach(bus *channel.Bus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		return
	}
	m.detached = false
	m.unsubscribe = channel.Subscribe(bus, events.ScrollUpdate, m.forward)
}

// Detach stops forwarding and waits for outstanding acknowledgements. An
// event already being delivered when Detach runs is dropped.
func (m *Mirror) Detach() {
	m.mu.Lock()
	m.detached = true
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.mu.Unlock()
	m.pending.Wait()
}

// Flush waits for every publish issued so far to settle.
func (m *Mirror) Flush() {
	m.pending.Wait()
}

// Stats returns the number of acknowledged and failed publishes.
func (m *Mirror) Stats() (sent, failed uint64) {
	return m.sent.Load(), m.failed.Load()
}

// forward runs on the publisher's goroutine, so it never blocks on the broker.
func (m *Mirror) forward(p events.Progress) {
	m.mu.Lock()
	if m.detached {
		m.mu.Unlock()
		return
	}
	m.pending.Add(1)
	m.mu.Unlock()

	payload, err := json.Marshal(p)
	if err != nil {
		m.pending.Done()
		m.failed.Add(1)
		m.logger.Error("mirror: encode progress", "error", err)
		return
	}

	token := m.pub.Publish(m.cfg.Topic, m.cfg.QoS, m.cfg.Retained, payload)
	go func() {
		defer m.pending.Done()
		if !token.WaitTimeout(m.cfg.Timeout) {
			m.failed.Add(1)
			m.logger.Warn("mirror: publish not acknowledged", "topic", m.cfg.Topic, "timeout", m.cfg.Timeout)
			return
		}
		if err := token.Error(); err != nil {
			m.failed.Add(1)
			m.logger.Warn("mirror: publish failed", "topic", m.cfg.Topic, "error", err)
			return
		}
		m.sent.Add(1)
	}()
}

// ClientConfig holds the broker connection settings.
type ClientConfig struct {
	URL      string
	ClientID string
	Username string
	Password string
}

// Connect dials the broker and waits for the session.
func Connect(cc ClientConfig, timeout time.Duration) (mqtt.Client, error) {
	if cc.ClientID == "" {
		cc.ClientID = "scrollstory"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	options := mqtt.NewClientOptions().
		AddBroker(cc.URL).
		SetClientID(cc.ClientID).
		SetUsername(cc.Username).
		SetPassword(cc.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetConnectTimeout(timeout)
	client := mqtt.NewClient(options)

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mirror: connect to %s: timed out after %s", cc.URL, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mirror: connect to %s: %w", cc.URL, err)
	}
	return client, nil
}
