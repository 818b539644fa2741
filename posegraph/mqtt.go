package posegraph

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MessageHandler is called with the raw payload of a subscribed topic
type MessageHandler func(payload []byte)

// Subscription binds a topic to a handler. Stream names the logical input
// for logs and metrics.
type Subscription struct {
	Topic   string
	Stream  string
	Handler MessageHandler
}

// MQTTClient manages the broker connection and the topic subscriptions
type MQTTClient struct {
	client        mqtt.Client
	config        *Config
	subscriptions []Subscription
	isConnected   bool
	logger        *zap.Logger
	mu            sync.RWMutex
}

// InitMQTT creates the MQTT client and starts connecting in the background.
// The broker comes from MQTT_BROKER or the config; if neither is set MQTT is
// disabled and InitMQTT returns nil, nil.
func InitMQTT(ctx context.Context, config *Config, subs []Subscription, logger *zap.Logger) (*MQTTClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mqtt")

	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}
	if broker == "" {
		logger.Info("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}
	if config == nil {
		return nil, fmt.Errorf("MQTT enabled but no configuration provided")
	}
	for _, s := range subs {
		if s.Topic == "" || s.Handler == nil {
			return nil, fmt.Errorf("subscription for stream %q needs a topic and a handler", s.Stream)
		}
	}

	client := &MQTTClient{
		config:        config,
		subscriptions: subs,
		logger:        logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" && config.MQTT.ClientID != "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "fgsp-" + config.RobotName
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry(ctx)
	return client, nil
}

// connectWithRetry connects with exponential backoff until it succeeds or
// ctx is done
func (c *MQTTClient) connectWithRetry(ctx context.Context) {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		c.logger.Info("connecting to MQTT broker")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				c.logger.Info("connected to MQTT broker")
				c.setConnected(true)
				return
			}
			c.logger.Warn("MQTT connection failed", zap.Error(token.Error()))
		} else {
			c.logger.Warn("MQTT connection timeout")
		}

		c.logger.Info("retrying MQTT connection", zap.Duration("delay", retryDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
		retryDelay = min(retryDelay*2, maxRetryDelay)
	}
}

// onConnect subscribes to every configured topic
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.logger.Info("MQTT connected, subscribing", zap.Int("topics", len(c.subscriptions)))
	c.setConnected(true)

	for _, sub := range c.subscriptions {
		token := client.Subscribe(sub.Topic, c.config.MQTT.QoS, c.createMessageHandler(sub))
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			c.logger.Error("subscribe failed", zap.String("topic", sub.Topic), zap.Error(token.Error()))
			continue
		}
		c.logger.Info("subscribed", zap.String("topic", sub.Topic), zap.String("stream", sub.Stream))
	}
}

// onConnectionLost is called when the connection drops; auto-reconnect retries
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	c.logger.Warn("MQTT connection interrupted, auto-reconnect will retry", zap.Error(err))
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	c.logger.Info("MQTT reconnecting")
}

// createMessageHandler wraps a subscription handler for paho
func (c *MQTTClient) createMessageHandler(sub Subscription) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		c.logger.Debug("received message",
			zap.String("stream", sub.Stream),
			zap.String("topic", msg.Topic()),
			zap.Int("bytes", len(msg.Payload())))
		sub.Handler(msg.Payload())
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.logger.Info("disconnecting from MQTT broker")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient around a provided mqtt.Client
func newMQTTClientWithMock(client mqtt.Client, config *Config, subs []Subscription) *MQTTClient {
	return &MQTTClient{
		client:        client,
		config:        config,
		subscriptions: subs,
		logger:        zap.NewNop(),
	}
}
