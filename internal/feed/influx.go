package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
)

// InfluxConfig configures polling of sensor values written to InfluxDB, one
// measurement per feed path ("Data", "NPK_Sensor_Data") with one field per key.
type InfluxConfig struct {
	URL          string
	Token        string
	Org          string
	Bucket       string
	PollInterval time.Duration
	Lookback     time.Duration
}

// LatestQuerier returns the newest value of every field of a measurement.
type LatestQuerier interface {
	Latest(ctx context.Context, measurement string, lookback time.Duration) (map[string]any, error)
}

type fluxQuerier struct {
	api    api.QueryAPI
	bucket string
}

func buildLatestFlux(bucket, measurement string, lookback time.Duration) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%ds)
  |> filter(fn: (r) => r._measurement == %q)
  |> last()
  |> keep(columns: ["_time","_value","_field"])
`, bucket, int64(lookback.Seconds()), measurement)
}

func (q *fluxQuerier) Latest(ctx context.Context, measurement string, lookback time.Duration) (map[string]any, error) {
	res, err := q.api.Query(ctx, buildLatestFlux(q.bucket, measurement, lookback))
	if err != nil {
		return nil, err
	}
	defer res.Close()

	out := make(map[string]any)
	newest := make(map[string]time.Time)
	for res.Next() {
		rec := res.Record()
		// several series may carry the same field; keep the most recent
		if t, ok := newest[rec.Field()]; ok && !rec.Time().After(t) {
			continue
		}
		newest[rec.Field()] = rec.Time()
		out[rec.Field()] = rec.Value()
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	return out, nil
}

// InfluxSource polls InfluxDB on a gocron schedule and emits the latest values as updates.
type InfluxSource struct {
	cfg     InfluxConfig
	querier LatestQuerier
	client  influxdb2.Client
	now     func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	sched   *gocron.Scheduler
	healthy map[string]bool
}

var _ Source = (*InfluxSource)(nil)

func NewInfluxSource(cfg InfluxConfig) *InfluxSource {
	return newInfluxSource(cfg, nil)
}

func newInfluxSource(cfg InfluxConfig, q LatestQuerier) *InfluxSource {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	return &InfluxSource{cfg: cfg, querier: q, now: time.Now, healthy: make(map[string]bool)}
}

func (s *InfluxSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched != nil {
		return nil
	}
	if s.querier == nil {
		client := influxdb2.NewClient(s.cfg.URL, s.cfg.Token)
		ok, err := client.Ping(ctx)
		if err != nil || !ok {
			client.Close()
			return fmt.Errorf("feed: influx ping %s: ok=%v err=%v", s.cfg.URL, ok, err)
		}
		s.client = client
		s.querier = &fluxQuerier{api: client.QueryAPI(s.cfg.Org), bucket: s.cfg.Bucket}
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.sched = gocron.NewScheduler(time.UTC)
	s.sched.SingletonModeAll()
	s.sched.StartAsync()
	return nil
}

// Connected reports whether the last poll of every subscribed path succeeded.
func (s *InfluxSource) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched == nil || len(s.healthy) == 0 {
		return false
	}
	for _, ok := range s.healthy {
		if !ok {
			return false
		}
	}
	return true
}

// Subscribe schedules a poll of path every PollInterval, the first one immediately.
func (s *InfluxSource) Subscribe(path string, h Handler) error {
	if _, ok := schema[path]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched == nil {
		return ErrNotConnected
	}
	_ = s.sched.RemoveByTag(path)
	s.healthy[path] = false
	_, err := s.sched.Every(s.cfg.PollInterval).Tag(path).Do(func() { s.poll(path, h) })
	if err != nil {
		return fmt.Errorf("feed: schedule %s: %w", path, err)
	}
	return nil
}

func (s *InfluxSource) poll(path string, h Handler) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	qctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	values, err := s.querier.Latest(qctx, path, s.cfg.Lookback)
	s.mu.Lock()
	if _, subscribed := s.healthy[path]; subscribed {
		s.healthy[path] = err == nil
	}
	s.mu.Unlock()
	if err != nil {
		log.Warnf("feed: influx poll %s: %v", path, err)
		return
	}
	if len(values) == 0 {
		return
	}
	u, err := Decode(path, values, s.now())
	if err != nil {
		log.Warnf("feed: influx decode %s: %v", path, err)
		return
	}
	h(u)
}

func (s *InfluxSource) Unsubscribe(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.healthy, path)
	if s.sched == nil {
		return nil
	}
	if err := s.sched.RemoveByTag(path); err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		return err
	}
	return nil
}

func (s *InfluxSource) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	sched, client := s.sched, s.client
	s.sched, s.client = nil, nil
	s.healthy = make(map[string]bool)
	s.mu.Unlock()

	// polls take s.mu, so the scheduler is stopped without holding it
	if sched != nil {
		sched.Stop()
	}
	if client != nil {
		client.Close()
	}
}
