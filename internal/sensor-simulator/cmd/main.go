package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/crop_advisor/internal/feed"
	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
	sensorSimulator "github.com/LeonardoBeccarini/crop_advisor/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/crop_advisor/pkg/rabbitmq"
)

func main() {
	defer log.Sync()
	if err := newCommand().Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	// flag defaults read the environment, so .env goes in first
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("sensor: .env: %v", err)
	}
	cfg := rabbitmq.RabbitMQConfig{}
	var (
		prefix   string
		encoding string
		interval time.Duration
		seed     int64
		lat, lon float64
		debug    bool
	)

	cmd := &cobra.Command{
		Use:          "sensor-sim",
		Short:        "Publish simulated Data and NPK_Sensor_Data readings over MQTT",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := log.Init(debug); err != nil {
				return err
			}
			marshal, err := sensorSimulator.MarshalFor(encoding)
			if err != nil {
				return err
			}
			if interval <= 0 {
				return fmt.Errorf("interval must be positive")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := rabbitmq.NewRabbitMQConn(ctx, &cfg)
			if err != nil {
				return err
			}
			topic := func(path string) string {
				if prefix == "" {
					return path
				}
				return strings.TrimRight(prefix, "/") + "/" + path
			}

			gen := sensorSimulator.NewDataGenerator(seed)
			if lat != 0 || lon != 0 {
				if err := gen.SeedMoisture(ctx, lat, lon); err != nil {
					log.Warnf("sensor: soil moisture seed unavailable, using default: %v", err)
				}
			}
			sim := sensorSimulator.NewSimulator(gen,
				rabbitmq.NewPublisher(client, topic(feed.PathData)),
				rabbitmq.NewPublisher(client, topic(feed.PathNPK)),
				marshal)
			log.Infof("sensor: publishing every %s to %s", interval, cfg.BrokerURL())
			sim.Start(ctx, interval)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Host, "host", envOr("RABBITMQ_HOST", "localhost"), "MQTT broker host")
	f.IntVar(&cfg.Port, "port", 1883, "MQTT broker port")
	f.StringVar(&cfg.User, "user", envOr("RABBITMQ_USER", "guest"), "MQTT user")
	f.StringVar(&cfg.Password, "password", envOr("RABBITMQ_PASSWORD", "guest"), "MQTT password")
	f.StringVar(&cfg.ClientID, "client-id", "sensorPublisher1", "MQTT client ID")
	f.StringVar(&prefix, "topic-prefix", envOr("FEED_TOPIC_PREFIX", ""), "topic prefix, e.g. farm")
	f.StringVar(&encoding, "encoding", envOr("FEED_ENCODING", "json"), "payload encoding (json|msgpack)")
	f.DurationVar(&interval, "interval", 10*time.Second, "Data publish interval (NPK every two)")
	f.Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	f.Float64Var(&lat, "lat", 0, "latitude for the SoilGrids moisture seed")
	f.Float64Var(&lon, "lon", 0, "longitude for the SoilGrids moisture seed")
	f.BoolVar(&debug, "debug", false, "debug logging")
	return cmd
}

func envOr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}
