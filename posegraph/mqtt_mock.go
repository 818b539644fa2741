package posegraph

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MockMessage is one publish recorded by MockClient
type MockMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MockClient is an in-memory mqtt.Client for the graph transports. Publishes
// are recorded per topic and Deliver feeds payloads to the routed handlers.
type MockClient struct {
	mu         sync.RWMutex
	connected  bool
	publishErr error
	routes     map[string]mqtt.MessageHandler
	published  []MockMessage
}

// NewMockClient creates a mock in the given connection state
func NewMockClient(connected bool) *MockClient {
	return &MockClient{connected: connected, routes: make(map[string]mqtt.MessageHandler)}
}

// FailPublish makes every following publish complete with err
func (c *MockClient) FailPublish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishErr = err
}

// MessagesOn returns the messages published on topic, or on every topic when
// topic is empty
func (c *MockClient) MessagesOn(topic string) []MockMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []MockMessage
	for _, m := range c.published {
		if topic == "" || m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// ClearPublished forgets the recorded messages
func (c *MockClient) ClearPublished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = nil
}

// Deliver hands payload to the handler routed for topic and reports whether
// one was found
func (c *MockClient) Deliver(topic string, payload []byte) bool {
	c.mu.RLock()
	handler := c.routes[topic]
	c.mu.RUnlock()
	if handler == nil {
		return false
	}
	handler(c, &mockMessage{topic: topic, payload: payload})
	return true
}

func (c *MockClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *MockClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *MockClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return doneToken{}
}

func (c *MockClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return doneToken{mqtt.ErrNotConnected}
	}
	if c.publishErr != nil {
		return doneToken{c.publishErr}
	}
	msg := MockMessage{Topic: topic, QoS: qos, Retain: retained}
	switch v := payload.(type) {
	case []byte:
		msg.Payload = v
	case string:
		msg.Payload = []byte(v)
	}
	c.published = append(c.published, msg)
	return doneToken{}
}

func (c *MockClient) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	return c.route(callback, topic)
}

func (c *MockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	topics := make([]string, 0, len(filters))
	for topic := range filters {
		topics = append(topics, topic)
	}
	return c.route(callback, topics...)
}

func (c *MockClient) route(callback mqtt.MessageHandler, topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return doneToken{mqtt.ErrNotConnected}
	}
	for _, topic := range topics {
		c.routes[topic] = callback
	}
	return doneToken{}
}

func (c *MockClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.routes, topic)
	}
	return doneToken{}
}

func (c *MockClient) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[topic] = callback
}

func (c *MockClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// doneToken is an already completed mqtt.Token
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 0 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}
