// Package mqtt publishes catalog refresh events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ghcnd-server/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qosAtLeastOnce = byte(1)
	tokenPoll      = 200 * time.Millisecond
)

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	errStopped      = errors.New("publisher stopped")
)

// CatalogRefreshed is published, retained, after every catalog rebuild.
type CatalogRefreshed struct {
	Stations  int       `json:"stations"`
	BuiltAt   time.Time `json:"builtAt"`
	CachePath string    `json:"cachePath"`
}

// Publisher sends retained QoS 1 messages to one topic. A Publisher built
// without a broker is disabled and all its methods are no-ops.
type Publisher struct {
	client mqtt.Client
	topic  string
	broker string
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		topic:  cfg.MQTTTopic,
		broker: cfg.MQTTBroker,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	if cfg.MQTTBroker == "" {
		return p
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil
}

// Connect waits for the broker connection until ctx is done.
func (p *Publisher) Connect(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	select {
	case <-p.stopCh:
		return errStopped
	default:
	}
	if p.IsConnected() {
		return nil
	}

	if err := p.wait(ctx, p.client.Connect()); err != nil {
		p.client.Disconnect(0)
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// PublishCatalogRefreshed sends event to the configured topic.
func (p *Publisher) PublishCatalogRefreshed(ctx context.Context, event CatalogRefreshed) error {
	if !p.Enabled() {
		return nil
	}
	if !p.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode catalog event: %w", err)
	}
	if err := p.wait(ctx, p.client.Publish(p.topic, qosAtLeastOnce, true, payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	p.logger.Info("catalog refresh published", "topic", p.topic, "stations", event.Stations)
	return nil
}

// wait blocks until token completes, ctx is done or the publisher stops.
func (p *Publisher) wait(ctx context.Context, token mqtt.Token) error {
	for {
		if token.WaitTimeout(tokenPoll) {
			return token.Error()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return errStopped
		default:
		}
	}
}

func (p *Publisher) IsConnected() bool {
	if !p.Enabled() {
		return false
	}
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect closes the broker connection. Safe to call more than once.
func (p *Publisher) Disconnect() {
	if !p.Enabled() {
		return
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.client.Disconnect(250)
	p.setConnected(false)
	p.logger.Info("mqtt publisher disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
