package rabbitmq

import (
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
)

// MessageHandler processes one message received on topic.
type MessageHandler func(topic string, message mqtt.Message) error

// Consumer holds one topic subscription on a shared client.
type Consumer struct {
	client mqtt.Client
	topic  string
	qos    byte

	mu      sync.RWMutex
	handler MessageHandler
}

func NewConsumer(client mqtt.Client, topic string, qos byte, handler MessageHandler) *Consumer {
	return &Consumer{client: client, topic: topic, qos: qos, handler: handler}
}

func (c *Consumer) SetHandler(handler MessageHandler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

func (c *Consumer) Topic() string { return c.topic }

func (c *Consumer) dispatch(_ mqtt.Client, message mqtt.Message) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h == nil {
		log.Warnf("mqtt: no handler set for topic %s", c.topic)
		return
	}
	if err := h(c.topic, message); err != nil {
		log.Warnf("mqtt: error handling message on %s: %v", message.Topic(), err)
	}
}

// Subscribe registers the subscription and returns once the broker acknowledged it.
func (c *Consumer) Subscribe() error {
	token := c.client.Subscribe(c.topic, c.qos, c.dispatch)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", c.topic, token.Error())
	}
	log.Infof("mqtt: subscribed to %s (qos=%d)", c.topic, c.qos)
	return nil
}

func (c *Consumer) Unsubscribe() error {
	token := c.client.Unsubscribe(c.topic)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("unsubscribe %s: %w", c.topic, token.Error())
	}
	log.Infof("mqtt: unsubscribed from %s", c.topic)
	return nil
}
