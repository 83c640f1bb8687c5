package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
)

// RabbitMQConfig describes the MQTT listener of the broker (RabbitMQ MQTT plugin or any MQTT 3.1.1 broker).
type RabbitMQConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	ClientID       string
	ConnectRetries int           // attempts before giving up, default 5
	MaxElapsed     time.Duration // overall retry budget, default 10s
}

// BrokerURL returns the tcp:// address of the broker.
func (c *RabbitMQConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

func clientOptions(cfg *RabbitMQConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL())
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	// persistent session: the broker keeps our subscriptions across auto-reconnects
	opts.SetCleanSession(false)
	opts.SetResumeSubs(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnf("mqtt: connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		log.Infof("mqtt: reconnecting to %s", cfg.BrokerURL())
	})
	return opts
}

// NewRabbitMQConn connects to the broker, retrying with exponential backoff.
// The connection is closed when ctx is cancelled.
func NewRabbitMQConn(ctx context.Context, cfg *RabbitMQConfig) (mqtt.Client, error) {
	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 5
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.MaxElapsed
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 10 * time.Second
	}

	opts := clientOptions(cfg)
	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Warnf("mqtt: connect to %s failed: %v", cfg.BrokerURL(), token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	log.Infof("mqtt: connected to %s as %s", cfg.BrokerURL(), cfg.ClientID)

	go func() {
		<-ctx.Done()
		CloseRabbitMQConn(client)
	}()
	return client, nil
}

// CloseRabbitMQConn disconnects the client if it is still connected.
func CloseRabbitMQConn(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		log.Infof("mqtt: connection closed")
	}
}
