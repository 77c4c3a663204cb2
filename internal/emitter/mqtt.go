// Package emitter publishes session transition events to an MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/session"
)

var (
	// ErrNotConnected is returned before Connect succeeds or while the
	// client is reconnecting.
	ErrNotConnected = errors.New("mqtt not connected")

	// ErrQueueFull is returned by Record when the broker is falling behind
	// and the event is dropped.
	ErrQueueFull = errors.New("mqtt publish queue full")
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	queueSize      = 32
)

// publisher is the part of mqtt.Client the emitter uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Message is the JSON payload published for each transition.
type Message struct {
	SessionID string        `json:"session_id"`
	Event     string        `json:"event"`
	Label     gesture.Label `json:"label"`
	Count     int           `json:"count"`
	At        time.Time     `json:"at"`
}

// NewMessage builds the payload for ev.
func NewMessage(ev session.Event) Message {
	return Message{
		SessionID: ev.SessionID,
		Event:     string(ev.Kind),
		Label:     ev.Kind.Label(),
		Count:     ev.Count,
		At:        ev.At,
	}
}

// MQTTEmitter publishes transition events as JSON. Record only queues the
// event; a single worker started by Connect does the publishing, so a slow
// broker never holds up the caller.
type MQTTEmitter struct {
	cfg    config.MQTTConfig
	client publisher
	queue  chan session.Event
	wg     sync.WaitGroup

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
	started   bool
	closed    bool
}

// NewMQTTEmitter creates an emitter; call Connect before Record.
func NewMQTTEmitter(cfg config.MQTTConfig) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		queue:     make(chan session.Event, queueSize),
		published: make(map[string]uint64),
	}
}

// BrokerURL adds the tcp:// scheme when the configured broker has none.
func BrokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Connect establishes the broker connection. The client reconnects on its
// own after a lost connection.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(BrokerURL(e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("mqtt connection established", "broker", e.cfg.Broker, "client_id", e.cfg.ClientID)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", e.cfg.Broker)
	}

	client := mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", e.cfg.Broker)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.client = client
	e.connected = true
	e.mu.Unlock()

	e.start()
	return nil
}

// start launches the publish worker once.
func (e *MQTTEmitter) start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.closed {
		return
	}
	e.started = true

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for ev := range e.queue {
			if err := e.Publish(ev); err != nil {
				slog.Warn("mqtt publish failed", "event", ev.Kind, "topic", e.cfg.Topic, "error", err)
			}
		}
	}()
}

// Record queues ev for publishing and returns at once. It satisfies the
// pipeline's event sink interface.
func (e *MQTTEmitter) Record(ev session.Event) error {
	err := e.enqueue(ev)
	if err != nil {
		e.countError()
	}
	return err
}

func (e *MQTTEmitter) enqueue(ev session.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.client == nil || !e.connected || e.closed {
		return ErrNotConnected
	}
	select {
	case e.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Publish sends ev to the configured topic and waits for the broker, up to
// publishTimeout.
func (e *MQTTEmitter) Publish(ev session.Event) error {
	e.mu.RLock()
	client, connected := e.client, e.connected
	e.mu.RUnlock()

	if client == nil || !connected {
		e.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(NewMessage(ev))
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := e.cfg.Topic
	token := client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("event published", "topic", topic, "qos", e.cfg.QoS, "event", ev.Kind)

	return nil
}

// Disconnect stops accepting events, waits for queued ones to be published
// and closes the broker connection.
func (e *MQTTEmitter) Disconnect() error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	e.wg.Wait()

	e.mu.Lock()
	client := e.client
	e.connected = false
	e.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}

	return nil
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// Stats returns a copy of the emitter counters.
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
