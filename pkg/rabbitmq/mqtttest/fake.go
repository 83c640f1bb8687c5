// Package mqtttest provides an in-memory mqtt.Client for tests.
package mqtttest

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Token is an already completed mqtt.Token.
type Token struct{ Err error }

func (t *Token) Wait() bool                     { return true }
func (t *Token) WaitTimeout(time.Duration) bool { return true }
func (t *Token) Error() error                   { return t.Err }
func (t *Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Message is a minimal mqtt.Message.
type Message struct {
	TopicName string
	Body      []byte
	QoS       byte
	Dup       bool
}

func (m *Message) Duplicate() bool   { return m.Dup }
func (m *Message) Qos() byte         { return m.QoS }
func (m *Message) Retained() bool    { return false }
func (m *Message) Topic() string     { return m.TopicName }
func (m *Message) MessageID() uint16 { return 1 }
func (m *Message) Payload() []byte   { return m.Body }
func (m *Message) Ack()              {}

// Published records one Publish call.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// Client is a loopback broker: Deliver routes to matching subscriptions and
// Publish records the message and delivers it as well.
type Client struct {
	mqtt.Client // unimplemented methods panic

	mu           sync.Mutex
	connected    bool
	subs         map[string]mqtt.MessageHandler
	published    []Published
	SubscribeErr error
}

func NewClient() *Client {
	return &Client{connected: true, subs: make(map[string]mqtt.MessageHandler)}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) IsConnectionOpen() bool { return c.IsConnected() }

func (c *Client) Connect() mqtt.Token {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return &Token{}
}

func (c *Client) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *Client) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr != nil {
		return &Token{Err: c.SubscribeErr}
	}
	c.subs[topic] = callback
	return &Token{}
}

// Unsubscribe fails with mqtt.ErrNotConnected after Disconnect, like paho.
func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return &Token{Err: mqtt.ErrNotConnected}
	}
	for _, t := range topics {
		delete(c.subs, t)
	}
	return &Token{}
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch p := payload.(type) {
	case string:
		b = []byte(p)
	case []byte:
		b = p
	}
	c.mu.Lock()
	c.published = append(c.published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: b})
	c.mu.Unlock()
	c.Deliver(topic, b)
	return &Token{}
}

// Deliver hands payload to every subscription whose filter matches topic.
func (c *Client) Deliver(topic string, payload []byte) {
	c.mu.Lock()
	var handlers []mqtt.MessageHandler
	for filter, h := range c.subs {
		if Match(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(c, &Message{TopicName: topic, Body: payload, QoS: 1})
	}
}

// Subscriptions returns the active topic filters.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for t := range c.subs {
		out = append(out, t)
	}
	return out
}

// Published returns a copy of everything published so far.
func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// Match implements MQTT topic filter matching with + and # wildcards.
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}
