package posegraph

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MessagePublisher is the egress side used by the pipeline components
type MessagePublisher interface {
	Publish(topic string, v any) error
}

// Publisher publishes JSON messages to MQTT. Messages are fire-and-forget:
// the broker acknowledgment is awaited briefly and never retried.
type Publisher struct {
	client mqtt.Client
	qos    byte
	retain bool
	logger *zap.Logger

	published map[string]int
	mu        sync.RWMutex
}

// NewPublisher creates a publisher on client. A nil client disables
// publishing; every Publish call then returns ErrNotConnected.
func NewPublisher(client mqtt.Client, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:    client,
		qos:       0,
		retain:    false,
		logger:    logger.Named("publisher"),
		published: make(map[string]int),
	}
}

// SetClient attaches the MQTT client once the connection has been set up
func (p *Publisher) SetClient(client mqtt.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = client
}

// Publish marshals v to JSON and publishes it on topic
func (p *Publisher) Publish(topic string, v any) error {
	p.mu.RLock()
	client, qos, retain := p.client, p.qos, p.retain
	p.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}
	if topic == "" {
		return fmt.Errorf("publishing: empty topic")
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling message for %s: %w", topic, err)
	}

	token := client.Publish(topic, qos, retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()
	messagesPublished.WithLabelValues(topic).Inc()
	p.logger.Debug("published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}

// PublishedCount returns the number of messages published on topic
func (p *Publisher) PublishedCount(topic string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.published[topic]
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retain = retain
}
