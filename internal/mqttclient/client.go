package mqttclient

import (
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/snarg/meetbrief/internal/metrics"
)

// publishTimeout bounds how long Publish waits for the broker to acknowledge.
const publishTimeout = 5 * time.Second

type Client struct {
	conn        mqtt.Client
	topicPrefix string
	connected   atomic.Bool
	pending     sync.WaitGroup
	log         zerolog.Logger
}

type Options struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	Log         zerolog.Logger
}

func Connect(opts Options) (*Client, error) {
	c := &Client{
		topicPrefix: strings.Trim(opts.TopicPrefix, "/"),
		log:         opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) onConnect(_ mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Str("topic_prefix", c.topicPrefix).Msg("mqtt connected")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// Topic returns the full topic for an event type.
func (c *Client) Topic(eventType string) string {
	return Topic(c.topicPrefix, eventType)
}

// Publish sends payload as JSON to <prefix>/<eventType> at QoS 0.
// It returns once the message is queued; the broker acknowledgement is
// awaited in the background for up to publishTimeout. Failures are logged,
// never returned.
func (c *Client) Publish(eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Warn().Err(err).Str("event", eventType).Msg("marshal event failed")
		return
	}

	topic := c.Topic(eventType)
	token := c.conn.Publish(topic, 0, false, data)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		c.await(token, topic, eventType)
	}()
}

func (c *Client) await(token mqtt.Token, topic, eventType string) {
	if !token.WaitTimeout(publishTimeout) {
		c.log.Warn().Str("topic", topic).Msg("mqtt publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		c.log.Warn().Err(err).Str("topic", topic).Msg("mqtt publish failed")
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(eventType).Inc()
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Close waits for outstanding publishes, then disconnects.
func (c *Client) Close() {
	c.pending.Wait()
	c.log.Info().Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}

// Topic joins a prefix and an event type, skipping an empty prefix.
func Topic(prefix, eventType string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return eventType
	}
	return prefix + "/" + eventType
}
