package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
	"github.com/LeonardoBeccarini/crop_advisor/pkg/dedup"
	"github.com/LeonardoBeccarini/crop_advisor/pkg/rabbitmq"
)

// Dialer opens the broker connection; rabbitmq.NewRabbitMQConn in production.
type Dialer func(ctx context.Context, cfg *rabbitmq.RabbitMQConfig) (mqtt.Client, error)

// MQTTSource receives each path on topic <prefix><path>, for example "farm/Data".
type MQTTSource struct {
	cfg         rabbitmq.RabbitMQConfig
	topicPrefix string
	codec       Codec
	dial        Dialer
	deduper     *dedup.Deduper
	now         func() time.Time

	mu        sync.Mutex
	client    mqtt.Client
	consumers map[string]*rabbitmq.Consumer
}

var _ Source = (*MQTTSource)(nil)

func NewMQTTSource(cfg rabbitmq.RabbitMQConfig, topicPrefix string, codec Codec, dial Dialer) *MQTTSource {
	if dial == nil {
		dial = rabbitmq.NewRabbitMQConn
	}
	if codec == nil {
		codec = jsonCodec{}
	}
	return &MQTTSource{
		cfg:         cfg,
		topicPrefix: topicPrefix,
		codec:       codec,
		dial:        dial,
		deduper:     dedup.New(2*time.Minute, 10000),
		now:         time.Now,
		consumers:   make(map[string]*rabbitmq.Consumer),
	}
}

// Topic returns the MQTT topic carrying path.
func (s *MQTTSource) Topic(path string) string {
	if s.topicPrefix == "" {
		return path
	}
	return strings.TrimRight(s.topicPrefix, "/") + "/" + path
}

func (s *MQTTSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}
	c, err := s.dial(ctx, &s.cfg)
	if err != nil {
		return fmt.Errorf("feed: mqtt connect: %w", err)
	}
	s.client = c
	return nil
}

func (s *MQTTSource) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return isOpen(s.client)
}

func (s *MQTTSource) Subscribe(path string, h Handler) error {
	if _, ok := schema[path]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return ErrNotConnected
	}
	if old, ok := s.consumers[path]; ok {
		old.SetHandler(s.handlerFor(path, h))
		return nil
	}
	c := rabbitmq.NewConsumer(s.client, s.Topic(path), 1, s.handlerFor(path, h))
	if err := c.Subscribe(); err != nil {
		return err
	}
	s.consumers[path] = c
	return nil
}

func (s *MQTTSource) handlerFor(path string, h Handler) rabbitmq.MessageHandler {
	return func(_ string, msg mqtt.Message) error {
		// every payload is recorded; only a DUP-flagged repeat is a redelivery,
		// identical readings published again are fresh updates
		fresh := s.deduper.ShouldProcess(dedup.PayloadKey(msg.Topic(), msg.Payload()))
		if msg.Duplicate() && !fresh {
			return nil
		}
		payload, err := s.codec.Decode(msg.Payload())
		if err != nil {
			return fmt.Errorf("feed: %s: %w", path, err)
		}
		if payload == nil {
			return nil // node removed upstream: nothing to merge
		}
		u, err := Decode(path, payload, s.now())
		if err != nil {
			return err
		}
		h(u)
		return nil
	}
}

func (s *MQTTSource) Unsubscribe(path string) error {
	s.mu.Lock()
	c, ok := s.consumers[path]
	delete(s.consumers, path)
	client := s.client
	s.mu.Unlock()
	if !ok || !isOpen(client) {
		return nil
	}
	return c.Unsubscribe()
}

// isOpen reports whether client can still reach the broker. The dialer closes
// the connection when its context ends, which may precede Unsubscribe and Close.
func isOpen(client mqtt.Client) bool {
	return client != nil && client.IsConnectionOpen()
}

// Close drops every subscription and disconnects.
func (s *MQTTSource) Close() {
	s.mu.Lock()
	consumers := s.consumers
	s.consumers = make(map[string]*rabbitmq.Consumer)
	client := s.client
	s.client = nil
	s.mu.Unlock()

	for path, c := range consumers {
		if !isOpen(client) {
			break
		}
		if err := c.Unsubscribe(); err != nil {
			log.Warnf("feed: unsubscribe %s: %v", path, err)
		}
	}
	rabbitmq.CloseRabbitMQConn(client)
}
