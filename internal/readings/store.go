// Package readings keeps the merged sensor snapshot fed by the two feed paths.
package readings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeonardoBeccarini/crop_advisor/internal/feed"
	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
	"github.com/LeonardoBeccarini/crop_advisor/internal/model"
)

type metrics struct {
	updates   *prometheus.CounterVec
	malformed *prometheus.CounterVec
	known     prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crop_feed_updates_total",
			Help: "Feed updates merged into the snapshot.",
		}, []string{"path"}),
		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crop_feed_malformed_values_total",
			Help: "Feed values that could not be parsed as numbers.",
		}, []string{"path"}),
		known: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crop_snapshot_known_fields",
			Help: "Snapshot fields currently holding a value.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.updates, m.malformed, m.known)
	}
	return m
}

// Store is the single owner of the current snapshot. Feed handlers write to it
// from the client goroutines; readers always get a copy.
type Store struct {
	mu        sync.RWMutex
	snap      model.Snapshot
	updatedAt time.Time

	metrics *metrics
}

// NewStore returns an empty store (every field unknown). A nil registerer
// leaves the metrics unregistered.
func NewStore(reg prometheus.Registerer) *Store {
	return &Store{metrics: newMetrics(reg)}
}

// Apply merges the fields present in u and returns how many were written.
// Fields absent from u keep their value.
func (s *Store) Apply(u model.FeedUpdate) int {
	if len(u.Malformed) > 0 {
		s.metrics.malformed.WithLabelValues(u.Path).Add(float64(len(u.Malformed)))
		log.Warnw("store: unparsable values", "path", u.Path, "keys", u.Malformed)
	}
	if u.Empty() {
		return 0
	}

	s.mu.Lock()
	snap := s.snap
	for f, r := range u.Values {
		snap = snap.With(f, r)
	}
	s.snap = snap
	at := u.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	if at.After(s.updatedAt) {
		s.updatedAt = at
	}
	known := snap.KnownCount()
	s.mu.Unlock()

	s.metrics.updates.WithLabelValues(u.Path).Inc()
	s.metrics.known.Set(float64(known))
	log.Debugf("store: merged %d field(s) from %s", len(u.Values), u.Path)
	return len(u.Values)
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// UpdatedAt is the time of the latest merged update, zero before the first.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Run connects src, subscribes both feed paths and blocks until ctx is done,
// then tears the subscriptions down and closes the source.
func (s *Store) Run(ctx context.Context, src feed.Source) error {
	if err := src.Connect(ctx); err != nil {
		return fmt.Errorf("store: connect: %w", err)
	}
	defer src.Close()

	var subscribed []string
	defer func() {
		for _, p := range subscribed {
			if err := src.Unsubscribe(p); err != nil {
				log.Warnf("store: unsubscribe %s: %v", p, err)
			}
		}
	}()
	for _, p := range feed.Paths() {
		if err := src.Subscribe(p, func(u model.FeedUpdate) { s.Apply(u) }); err != nil {
			return fmt.Errorf("store: subscribe %s: %w", p, err)
		}
		subscribed = append(subscribed, p)
	}
	log.Infof("store: following %v", subscribed)

	<-ctx.Done()
	return nil
}
