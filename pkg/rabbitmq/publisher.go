package rabbitmq

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
)

// IPublisher publishes payloads to a fixed topic.
type IPublisher interface {
	PublishMessage(message interface{}) error
	PublishMessageQos(qos byte, retained bool, message interface{}) error
	Close()
}

// Publisher publishes on one topic of a shared client.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

func (p *Publisher) Topic() string { return p.topic }

// PublishMessage publishes at QoS 0. message must be a string or a []byte.
func (p *Publisher) PublishMessage(message interface{}) error {
	return p.PublishMessageQos(0, false, message)
}

func (p *Publisher) PublishMessageQos(qos byte, retained bool, message interface{}) error {
	switch message.(type) {
	case string, []byte:
	default:
		return fmt.Errorf("invalid message format %T, expected string or []byte", message)
	}
	if qos > 2 {
		return fmt.Errorf("invalid qos %d", qos)
	}

	token := p.client.Publish(p.topic, qos, retained, message)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.topic, err)
	}
	log.Debugf("mqtt: published to %s (qos=%d retained=%v)", p.topic, qos, retained)
	return nil
}

// Close disconnects the shared client.
func (p *Publisher) Close() {
	CloseRabbitMQConn(p.client)
}
