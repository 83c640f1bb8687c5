// Package dashboard is the view layer: it renders the current readings and runs
// the crop recommendation on demand.
package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
	"github.com/LeonardoBeccarini/crop_advisor/internal/model"
	"github.com/LeonardoBeccarini/crop_advisor/internal/recommender"
)

// SnapshotSource is the read side of the reading store.
type SnapshotSource interface {
	Snapshot() model.Snapshot
	UpdatedAt() time.Time
}

// Service holds the last recommendation. Nothing is recommended until Trigger
// is called; each call replaces the previous result.
type Service struct {
	store SnapshotSource
	now   func() time.Time
	newID func() string

	mu   sync.RWMutex
	last *model.Recommendation

	recommendations *prometheus.CounterVec
}

func NewService(store SnapshotSource, reg prometheus.Registerer) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crop_recommendations_total",
			Help: "Recommendations computed, by resulting crop.",
		}, []string{"crop"}),
	}
	if reg != nil {
		reg.MustRegister(s.recommendations)
	}
	return s
}

// Snapshot returns the current readings.
func (s *Service) Snapshot() model.Snapshot { return s.store.Snapshot() }

// UpdatedAt is the time of the latest feed update.
func (s *Service) UpdatedAt() time.Time { return s.store.UpdatedAt() }

// Trigger evaluates the rule engine against the current snapshot and keeps the result.
func (s *Service) Trigger() model.Recommendation {
	snap := s.store.Snapshot()
	res := recommender.Evaluate(snap)
	rec := model.Recommendation{
		ID:          s.newID(),
		Crop:        res.Crop,
		Label:       res.Crop.Label(),
		Rule:        res.Rule,
		Snapshot:    snap,
		EvaluatedAt: s.now(),
	}

	s.mu.Lock()
	s.last = &rec
	s.mu.Unlock()

	s.recommendations.WithLabelValues(string(rec.Crop)).Inc()
	log.Infow("dashboard: recommendation", "id", rec.ID, "crop", rec.Crop, "rule", rec.Rule, "known_fields", snap.KnownCount())
	return rec
}

// Last returns the most recent recommendation; false while still pending.
func (s *Service) Last() (model.Recommendation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return model.Recommendation{}, false
	}
	return *s.last, true
}
