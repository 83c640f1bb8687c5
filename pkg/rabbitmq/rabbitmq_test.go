package rabbitmq

import (
	"errors"
	"sync/atomic"
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/crop_advisor/pkg/rabbitmq/mqtttest"
)

func TestBrokerURL(t *testing.T) {
	cfg := &RabbitMQConfig{Host: "broker", Port: 1883}
	assert.Equal(t, "tcp://broker:1883", cfg.BrokerURL())
}

func TestPublisher_RejectsUnsupportedPayload(t *testing.T) {
	p := NewPublisher(mqtttest.NewClient(), "farm/Data")
	err := p.PublishMessage(42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "int")
}

func TestPublisher_RejectsBadQos(t *testing.T) {
	p := NewPublisher(mqtttest.NewClient(), "farm/Data")
	assert.Error(t, p.PublishMessageQos(3, false, "x"))
}

func TestPublisher_PublishesStringAndBytes(t *testing.T) {
	c := mqtttest.NewClient()
	p := NewPublisher(c, "farm/Data")

	require.NoError(t, p.PublishMessage(`{"humidity":80}`))
	require.NoError(t, p.PublishMessageQos(1, true, []byte(`{"humidity":81}`)))

	pub := c.Published()
	require.Len(t, pub, 2)
	assert.Equal(t, "farm/Data", pub[0].Topic)
	assert.Equal(t, byte(0), pub[0].QoS)
	assert.Equal(t, byte(1), pub[1].QoS)
	assert.True(t, pub[1].Retained)
	assert.Equal(t, `{"humidity":81}`, string(pub[1].Payload))
}

func TestPublisher_CloseDisconnects(t *testing.T) {
	c := mqtttest.NewClient()
	NewPublisher(c, "t").Close()
	assert.False(t, c.IsConnected())
}

func TestConsumer_DispatchesToHandler(t *testing.T) {
	c := mqtttest.NewClient()
	var got atomic.Value
	cons := NewConsumer(c, "farm/Data", 1, func(topic string, m mqtt.Message) error {
		got.Store(topic + "|" + string(m.Payload()))
		return nil
	})
	require.NoError(t, cons.Subscribe())

	c.Deliver("farm/Data", []byte("hello"))
	assert.Equal(t, "farm/Data|hello", got.Load())

	require.NoError(t, cons.Unsubscribe())
	assert.Empty(t, c.Subscriptions())
}

func TestConsumer_HandlerErrorIsSwallowed(t *testing.T) {
	c := mqtttest.NewClient()
	calls := 0
	cons := NewConsumer(c, "farm/#", 0, nil)
	cons.SetHandler(func(string, mqtt.Message) error {
		calls++
		return errors.New("boom")
	})
	require.NoError(t, cons.Subscribe())
	c.Deliver("farm/Data", nil)
	c.Deliver("farm/NPK_Sensor_Data", nil)
	assert.Equal(t, 2, calls)
}

func TestConsumer_SubscribeError(t *testing.T) {
	c := mqtttest.NewClient()
	c.SubscribeErr = errors.New("not authorized")
	err := NewConsumer(c, "farm/Data", 1, nil).Subscribe()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "farm/Data")
}

func TestConsumer_UnsubscribeAfterDisconnect(t *testing.T) {
	c := mqtttest.NewClient()
	cons := NewConsumer(c, "farm/Data", 1, func(string, mqtt.Message) error { return nil })
	require.NoError(t, cons.Subscribe())

	c.Disconnect(0)
	assert.ErrorIs(t, cons.Unsubscribe(), mqtt.ErrNotConnected)
}

func TestMatch(t *testing.T) {
	assert.True(t, mqtttest.Match("farm/#", "farm/Data"))
	assert.True(t, mqtttest.Match("farm/+", "farm/Data"))
	assert.False(t, mqtttest.Match("farm/+", "farm/a/b"))
	assert.False(t, mqtttest.Match("farm/Data", "farm/NPK_Sensor_Data"))
}
