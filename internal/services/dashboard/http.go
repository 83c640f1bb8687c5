package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
	"github.com/LeonardoBeccarini/crop_advisor/internal/model"
	"github.com/LeonardoBeccarini/crop_advisor/internal/recommender"
)

// ReadyFunc reports whether the feed is currently connected.
type ReadyFunc func() bool

type readingsResponse struct {
	Snapshot  model.Snapshot `json:"snapshot"`
	Rows      []Row          `json:"rows"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

type recommendationResponse struct {
	Status         string                `json:"status"` // "pending" | "ready"
	Recommendation *model.Recommendation `json:"recommendation,omitempty"`
}

// NewHTTPMux wires the page, the JSON API, health/readiness and metrics.
func NewHTTPMux(svc *Service, ready ReadyFunc, gatherer prometheus.Gatherer) *http.ServeMux {
	if ready == nil {
		ready = func() bool { return true }
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		data := pageData{Refresh: 5, Rows: Rows(svc.Snapshot())}
		if rec, ok := svc.Last(); ok {
			data.Recommendation = &recommendationView{Label: rec.Label}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := pageTmpl.Execute(w, data); err != nil {
			log.Warnf("dashboard: render page: %v", err)
		}
	})
	// the page's "Recommend Now" form
	mux.HandleFunc("POST /{$}", func(w http.ResponseWriter, r *http.Request) {
		svc.Trigger()
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	mux.HandleFunc("GET /api/readings", func(w http.ResponseWriter, _ *http.Request) {
		snap := svc.Snapshot()
		resp := readingsResponse{Snapshot: snap, Rows: Rows(snap)}
		if at := svc.UpdatedAt(); !at.IsZero() {
			resp.UpdatedAt = &at
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET /api/recommendation", func(w http.ResponseWriter, _ *http.Request) {
		rec, ok := svc.Last()
		if !ok {
			writeJSON(w, http.StatusOK, recommendationResponse{Status: "pending"})
			return
		}
		writeJSON(w, http.StatusOK, recommendationResponse{Status: "ready", Recommendation: &rec})
	})
	mux.HandleFunc("POST /api/recommendation", func(w http.ResponseWriter, _ *http.Request) {
		rec := svc.Trigger()
		writeJSON(w, http.StatusOK, recommendationResponse{Status: "ready", Recommendation: &rec})
	})

	mux.HandleFunc("GET /api/rules", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, recommender.Rules())
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ok := ready()
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, struct {
			Ready bool `json:"ready"`
		}{ok})
	})

	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("dashboard: encode response: %v", err)
	}
}
