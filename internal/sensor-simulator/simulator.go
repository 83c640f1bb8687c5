package sensor_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/LeonardoBeccarini/crop_advisor/internal/feed"
	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
	"github.com/LeonardoBeccarini/crop_advisor/pkg/rabbitmq"
)

// Marshal encodes a payload for the wire.
type Marshal func(v any) ([]byte, error)

// MarshalFor returns the encoder matching a feed encoding name.
func MarshalFor(encoding string) (Marshal, error) {
	c, err := feed.CodecByName(encoding)
	if err != nil {
		return nil, err
	}
	if c.Name() == "msgpack" {
		return msgpack.Marshal, nil
	}
	return json.Marshal, nil
}

// Simulator publishes the two feed paths of one field node.
type Simulator struct {
	generator  *DataGenerator
	publishers map[string]rabbitmq.IPublisher
	marshal    Marshal
}

func NewSimulator(gen *DataGenerator, data, npk rabbitmq.IPublisher, marshal Marshal) *Simulator {
	if marshal == nil {
		marshal = json.Marshal
	}
	return &Simulator{
		generator:  gen,
		publishers: map[string]rabbitmq.IPublisher{feed.PathData: data, feed.PathNPK: npk},
		marshal:    marshal,
	}
}

// Publish sends one generated payload for path.
func (s *Simulator) Publish(path string) error {
	pub, ok := s.publishers[path]
	if !ok {
		return fmt.Errorf("%w: %q", feed.ErrUnknownPath, path)
	}
	values, err := s.generator.Next(path)
	if err != nil {
		return err
	}
	payload, err := s.marshal(values)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	log.Debugf("sensor: pub %s %v", path, values)
	// retained: a dashboard subscribing later starts from the current values
	return pub.PublishMessageQos(1, true, payload)
}

// Start publishes both paths right away, then "Data" every interval and
// "NPK_Sensor_Data" every two intervals, until ctx is cancelled.
func (s *Simulator) Start(ctx context.Context, interval time.Duration) {
	defer func() {
		for _, p := range s.publishers {
			p.Close()
		}
	}()

	s.publish(feed.PathData)
	s.publish(feed.PathNPK)

	data := time.NewTicker(interval)
	defer data.Stop()
	npk := time.NewTicker(2 * interval)
	defer npk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-data.C:
			s.publish(feed.PathData)
		case <-npk.C:
			s.publish(feed.PathNPK)
		}
	}
}

func (s *Simulator) publish(path string) {
	if err := s.Publish(path); err != nil {
		log.Warnf("sensor: publish %s: %v", path, err)
	}
}
